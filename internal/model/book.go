// Package model holds the shared domain types of the delivery backend:
// catalog entities as the catalog service reports them, paged results,
// per-user language policies and delivery outcomes. Types here are plain
// data; all I/O lives in the adapter packages.
package model

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxAuthorsShown = 15

// Author is a catalog author. Books is populated only when the author
// was fetched by id together with a page of their books.
type Author struct {
	ID               int    `json:"id"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	MiddleName       string `json:"middle_name"`
	AnnotationExists bool   `json:"annotation_exists"`
	Books            []Book `json:"books,omitempty"`
}

// FullName renders "Lastname Firstname Middlename", skipping empty parts.
func (a Author) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.LastName, a.FirstName, a.MiddleName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// ShortName renders "Lastname F M" with initials, used in filenames.
func (a Author) ShortName() string {
	var b strings.Builder
	if a.LastName != "" {
		b.WriteString(a.LastName)
	}
	for _, p := range []string{a.FirstName, a.MiddleName} {
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		// first rune, not first byte: names are mostly Cyrillic
		r, _ := utf8.DecodeRuneInString(p)
		b.WriteRune(r)
	}
	return b.String()
}

// ListEntry renders the author line for a browse page.
func (a Author) ListEntry() string {
	s := fmt.Sprintf("👤 <b>%s</b>\n/a_%d", a.FullName(), a.ID)
	if a.AnnotationExists {
		return s + fmt.Sprintf("\nОб авторе: /a_info_%d\n\n", a.ID)
	}
	return s + "\n\n"
}

// Book is a catalog document. FileType is the source format; fb2 books
// are additionally served by the catalog as epub and mobi conversions.
type Book struct {
	ID               int      `json:"id"`
	Title            string   `json:"title"`
	Lang             string   `json:"lang"`
	FileType         Variant  `json:"file_type"`
	AnnotationExists bool     `json:"annotation_exists"`
	Authors          []Author `json:"authors,omitempty"`
}

// Caption is the text attached to a delivered document: the title plus
// up to 15 author names.
func (b Book) Caption() string {
	if len(b.Authors) == 0 {
		return b.Title
	}
	names := make([]string, 0, maxAuthorsShown)
	for _, a := range b.Authors {
		if len(names) == maxAuthorsShown {
			names = append(names, "и т.д.")
			break
		}
		names = append(names, a.FullName())
	}
	return b.Title + "\n" + strings.Join(names, "\n")
}

// DownloadCaption is the caption used when the document exceeds the
// attachment limit and only an external link can be offered.
func (b Book) DownloadCaption(link string) string {
	return b.Caption() + fmt.Sprintf("\n\n⬇ <a href=\"%s\">Скачать</a>", link)
}

// variants returns the download command lines for the book's formats.
func (b Book) variantLines() string {
	if b.FileType == VariantFB2 {
		return fmt.Sprintf("⬇ fb2: /fb2_%d\n⬇ epub: /epub_%d\n⬇ mobi: /mobi_%d\n\n", b.ID, b.ID, b.ID)
	}
	return fmt.Sprintf("⬇ %s: /%s_%d\n\n", b.FileType, b.FileType, b.ID)
}

// ListEntry renders the book for a browse page, authors included.
func (b Book) ListEntry() string {
	var s strings.Builder
	fmt.Fprintf(&s, "📖 <b>%s</b> | %s\n", b.Title, b.Lang)
	if b.AnnotationExists {
		fmt.Fprintf(&s, "Аннотация: /b_info_%d\n", b.ID)
	}
	if len(b.Authors) == 0 {
		s.WriteString("\n")
	} else {
		for i, a := range b.Authors {
			if i == maxAuthorsShown {
				s.WriteString("  и другие\n")
				break
			}
			fmt.Fprintf(&s, "👤 <b>%s</b>\n", a.FullName())
		}
	}
	s.WriteString(b.variantLines())
	return s.String()
}

// ListEntryNoAuthor is ListEntry without the author lines, used on an
// author's own book list.
func (b Book) ListEntryNoAuthor() string {
	var s strings.Builder
	fmt.Fprintf(&s, "📖 <b>%s</b> | %s\n", b.Title, b.Lang)
	if b.AnnotationExists {
		fmt.Fprintf(&s, "Аннотация: /b_info_%d\n", b.ID)
	}
	s.WriteString(b.variantLines())
	return s.String()
}

// Sequence is a book series.
type Sequence struct {
	ID      int      `json:"id"`
	Name    string   `json:"name"`
	Authors []Author `json:"authors,omitempty"`
	Books   []Book   `json:"books,omitempty"`
}

// ListEntry renders the series for a browse page with up to 5 authors.
func (q Sequence) ListEntry() string {
	var s strings.Builder
	fmt.Fprintf(&s, "📚 <b>%s</b>\n", q.Name)
	if len(q.Authors) == 0 {
		s.WriteString("\n")
	} else {
		for i, a := range q.Authors {
			if i == 5 {
				s.WriteString("<b> и другие</b>\n")
				break
			}
			fmt.Fprintf(&s, "👤 <b>%s</b>\n", a.FullName())
		}
	}
	fmt.Fprintf(&s, "/s_%d\n\n", q.ID)
	return s.String()
}
