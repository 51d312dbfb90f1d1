// Package widget builds the embeddable testimonial runtime: the snapshot it carries, the markup it renders and the carousel state it advances.
package widget

import "strings"

// Variant identifies the display layout of a widget.
type Variant string

const (
	VariantCarousel Variant = "CAROUSEL"
	VariantGrid     Variant = "GRID"
	VariantWall     Variant = "WALL"
	VariantSingle   Variant = "SINGLE"

	// DefaultVariant is the layout used for any value outside the known set.
	DefaultVariant = VariantCarousel
)

var knownVariants = map[Variant]struct{}{
	VariantCarousel: {},
	VariantGrid:     {},
	VariantWall:     {},
	VariantSingle:   {},
}

// ParseVariant resolves a stored or requested layout name. Unrecognized values resolve to DefaultVariant.
func ParseVariant(rawValue string) Variant {
	candidate := Variant(strings.ToUpper(strings.TrimSpace(rawValue)))
	if _, known := knownVariants[candidate]; known {
		return candidate
	}
	return DefaultVariant
}

// String returns the wire name of the variant.
func (variant Variant) String() string {
	return string(variant)
}
