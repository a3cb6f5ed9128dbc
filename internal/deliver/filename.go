package deliver

import (
	"strings"
	"unicode"

	"bookcourier/internal/model"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// cyrillic holds the Latin renderings of Russian letters. Hard and soft
// signs are dropped on purpose.
var cyrillic = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "j", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "c", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "ju", 'я': "ja",
}

// stripMarks removes combining diacritical marks, turning á into a.
// Chained transformers carry internal buffers, so each call builds its
// own: Filename runs on concurrent requests.
func stripMarks() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// characters the transport rejects in attachment names
const droppedChars = "(),….’!\"?»«':"

var replacedChars = strings.NewReplacer(
	"—", "-",
	"–", "-",
	"/", "_",
	"№", "N",
	" ", "_",
	" ", "_",
)

func transliterate(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		lower := unicode.ToLower(r)
		mapped, ok := cyrillic[lower]
		if !ok {
			b.WriteRune(r)
			continue
		}
		if r != lower && mapped != "" {
			// preserve leading capitalization of the mapped letter
			b.WriteString(strings.ToUpper(mapped[:1]) + mapped[1:])
			continue
		}
		b.WriteString(mapped)
	}
	return b.String()
}

// Filename builds the attachment name for a book: author short names
// joined by underscores, the title, everything transliterated to a
// constrained Latin set with transport-rejected characters removed.
func Filename(book *model.Book, variant model.Variant) string {
	var b strings.Builder
	if len(book.Authors) > 0 {
		shorts := make([]string, len(book.Authors))
		for i, a := range book.Authors {
			shorts[i] = a.ShortName()
		}
		b.WriteString(strings.Join(shorts, "_"))
		b.WriteString("_-_")
	}
	b.WriteString(strings.TrimRight(book.Title, " "))

	name := transliterate(b.String())
	if flat, _, err := transform.String(stripMarks(), name); err == nil {
		name = flat
	}
	for _, c := range droppedChars {
		name = strings.ReplaceAll(name, string(c), "")
	}
	name = replacedChars.Replace(name)
	return name + "." + variant.String()
}
