package widget

import (
	"html"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	filledStarGlyph   = "★"
	emptyStarGlyph    = "☆"
	subtitleSeparator = " · "
	maxInitialsRunes  = 2
)

// Initials derives the avatar badge text from the first two whitespace-separated tokens.
// Each token contributes the first code point of its upper-cased first letter, matching String.prototype.toUpperCase.
func Initials(authorName string) string {
	upperCaser := cases.Upper(language.Und)
	var builder strings.Builder
	for index, token := range strings.Fields(authorName) {
		if index == maxInitialsRunes {
			break
		}
		firstRune, _ := utf8.DecodeRuneInString(token)
		upperRune, _ := utf8.DecodeRuneInString(upperCaser.String(string(firstRune)))
		builder.WriteRune(upperRune)
	}
	return builder.String()
}

// StarGlyphs renders exactly five glyphs, filled for the rating and empty for the remainder.
func StarGlyphs(testimonial Testimonial) string {
	filled := testimonial.Stars()
	return strings.Repeat(filledStarGlyph, filled) + strings.Repeat(emptyStarGlyph, MaxRating-filled)
}

// Subtitle joins the author's title and company, skipping whichever is absent.
func Subtitle(testimonial Testimonial) string {
	parts := make([]string, 0, 2)
	if testimonial.AuthorTitle != "" {
		parts = append(parts, testimonial.AuthorTitle)
	}
	if testimonial.AuthorCompany != "" {
		parts = append(parts, testimonial.AuthorCompany)
	}
	return strings.Join(parts, subtitleSeparator)
}

func renderCard(builder *strings.Builder, testimonial Testimonial) {
	builder.WriteString(`<div class="tm-card"><div class="tm-stars">`)
	builder.WriteString(StarGlyphs(testimonial))
	builder.WriteString(`</div><p class="tm-text">`)
	builder.WriteString(html.EscapeString(testimonial.Text))
	builder.WriteString(`</p><div class="tm-author"><div class="tm-avatar">`)
	builder.WriteString(html.EscapeString(Initials(testimonial.AuthorName)))
	builder.WriteString(`</div><div class="tm-info"><div class="tm-name">`)
	builder.WriteString(html.EscapeString(testimonial.AuthorName))
	builder.WriteString(`</div>`)
	if subtitle := Subtitle(testimonial); subtitle != "" {
		builder.WriteString(`<div class="tm-company">`)
		builder.WriteString(html.EscapeString(subtitle))
		builder.WriteString(`</div>`)
	}
	builder.WriteString(`</div></div></div>`)
}

// RenderCard returns the markup for a single testimonial card.
func RenderCard(testimonial Testimonial) string {
	var builder strings.Builder
	renderCard(&builder, testimonial)
	return builder.String()
}
