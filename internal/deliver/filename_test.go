package deliver

import (
	"testing"

	"bookcourier/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestFilename_TransliteratesAndJoins(t *testing.T) {
	book := &model.Book{
		ID:    42,
		Title: "Пикник на обочине",
		Authors: []model.Author{
			{FirstName: "Аркадий", LastName: "Стругацкий"},
			{FirstName: "Борис", LastName: "Стругацкий"},
		},
	}
	got := Filename(book, model.VariantFB2)
	assert.Equal(t, "Strugackij_A_Strugackij_B_-_Piknik_na_obochine.fb2", got)
}

func TestFilename_NoAuthors(t *testing.T) {
	book := &model.Book{ID: 1, Title: "Сказки"}
	assert.Equal(t, "Skazki.epub", Filename(book, model.VariantEPUB))
}

func TestFilename_StripsRejectedCharacters(t *testing.T) {
	book := &model.Book{ID: 1, Title: `Кто виноват? И: «что делать», №7/8 — итоги…`}
	got := Filename(book, model.VariantPDF)
	assert.Equal(t, "Kto_vinovat_I_chto_delat_N7_8_-_itogi.pdf", got)
}

func TestFilename_TrailingSpaceTrimmed(t *testing.T) {
	book := &model.Book{ID: 1, Title: "Title "}
	assert.Equal(t, "Title.fb2", Filename(book, model.VariantFB2))
}

func TestFilename_DiacriticsFlattened(t *testing.T) {
	book := &model.Book{ID: 1, Title: "Glosa de náufrago"}
	assert.Equal(t, "Glosa_de_naufrago.doc", Filename(book, model.VariantDOC))
}
