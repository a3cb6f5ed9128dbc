package model

import "strings"

// annotationCleaner strips the markup residue the catalog leaves in
// annotation bodies.
var annotationCleaner = strings.NewReplacer(
	`<p class="book">`, "",
	"<p class=book>", "",
	"</p>", "",
	"<a>", "",
	"</a>", "",
	"</A>", "",
	"[b]", "",
	"[/b]", "",
)

// Annotation is a book or author annotation. PhotoURL is empty when the
// catalog has no cover/portrait for it.
type Annotation struct {
	Title    string
	Body     string
	PhotoURL string
}

// Render returns the user-facing text: title plus the cleaned body.
func (a Annotation) Render() string {
	return a.Title + " " + annotationCleaner.Replace(a.Body)
}
