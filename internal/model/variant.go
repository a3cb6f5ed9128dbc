package model

import "fmt"

// Variant is the file format a book can be delivered in.
type Variant string

const (
	VariantFB2  Variant = "fb2"
	VariantEPUB Variant = "epub"
	VariantMOBI Variant = "mobi"
	VariantPDF  Variant = "pdf"
	VariantDOC  Variant = "doc"
	VariantDJVU Variant = "djvu"
)

var knownVariants = map[Variant]bool{
	VariantFB2:  true,
	VariantEPUB: true,
	VariantMOBI: true,
	VariantPDF:  true,
	VariantDOC:  true,
	VariantDJVU: true,
}

// ParseVariant validates a raw file-type string coming from a command
// like "/epub_12345".
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !knownVariants[v] {
		return "", fmt.Errorf("unknown file variant %q", s)
	}
	return v, nil
}

func (v Variant) String() string { return string(v) }
