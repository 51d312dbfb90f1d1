package widget

import (
	"fmt"
	"html"
	"strconv"
	"strings"
)

const (
	// MountAttribute marks the host page element a widget renders into; its value is the widget id.
	MountAttribute = "data-testimonio-widget"
	// BrandingURL is the attribution target shown on widgets that keep branding.
	BrandingURL = "https://testimonio.app"
	// StyleElementID identifies the single injected stylesheet node.
	StyleElementID = "tm-widget-styles"

	previousGlyph = "‹"
	nextGlyph     = "›"
)

// RootStyle renders the CSS custom properties applied to a widget root.
func RootStyle(config Config) string {
	return fmt.Sprintf("--tm-primary:%s;--tm-bg:%s;--tm-text:%s;--tm-radius:%dpx;--tm-columns:%d",
		config.Theme.Primary,
		config.Theme.Background,
		config.Theme.Text,
		config.Theme.RadiusPx,
		config.Columns,
	)
}

// Branding returns the attribution footer, or nothing when branding is suppressed.
func Branding(showBranding bool, locale string) string {
	if !showBranding {
		return ""
	}
	return `<div class="tm-powered"><a href="` + BrandingURL + `" target="_blank" rel="noopener">` +
		html.EscapeString(MessagesFor(locale).BrandingLabel) + `</a></div>`
}

// EmptyState returns the placeholder rendered when a snapshot has no testimonials.
func EmptyState(config Config) string {
	return openRoot(config, false) +
		`<div class="tm-card tm-empty">` + html.EscapeString(MessagesFor(config.Locale).EmptyState) + `</div></div>`
}

// Render produces the widget markup for a snapshot and carousel cursor. The browser runtime emits the same markup.
func Render(config Config, state CarouselState) string {
	if len(config.Testimonials) == 0 {
		return EmptyState(config)
	}

	var builder strings.Builder
	builder.WriteString(openRoot(config, true))
	switch config.Variant {
	case VariantGrid:
		renderCollection(&builder, "tm-grid", config.Testimonials)
	case VariantWall:
		renderCollection(&builder, "tm-wall", config.Testimonials)
	case VariantSingle:
		renderCard(&builder, config.Testimonials[0])
	default:
		renderCarousel(&builder, config, state)
	}
	builder.WriteString(Branding(config.ShowBranding, config.Locale))
	builder.WriteString(`</div>`)
	return builder.String()
}

func openRoot(config Config, withVariant bool) string {
	var builder strings.Builder
	builder.WriteString(`<div class="tm-widget"`)
	if withVariant {
		builder.WriteString(` data-variant="`)
		builder.WriteString(ParseVariant(config.Variant.String()).String())
		builder.WriteString(`"`)
	}
	builder.WriteString(` data-theme="`)
	builder.WriteString(html.EscapeString(config.Theme.Mode))
	builder.WriteString(`" style="`)
	builder.WriteString(html.EscapeString(RootStyle(config)))
	builder.WriteString(`">`)
	return builder.String()
}

func renderCollection(builder *strings.Builder, className string, testimonials []Testimonial) {
	builder.WriteString(`<div class="` + className + `">`)
	for _, testimonial := range testimonials {
		renderCard(builder, testimonial)
	}
	builder.WriteString(`</div>`)
}

func renderCarousel(builder *strings.Builder, config Config, state CarouselState) {
	count := len(config.Testimonials)
	if state.Count != count || state.Index < 0 || state.Index >= count {
		state = NewCarouselState(count)
	}
	messages := MessagesFor(config.Locale)

	builder.WriteString(`<div class="tm-carousel">`)
	if state.Interactive() {
		builder.WriteString(`<button type="button" class="tm-nav tm-nav-prev" data-action="prev" aria-label="` +
			html.EscapeString(messages.PreviousLabel) + `">` + previousGlyph + `</button>`)
	}
	builder.WriteString(`<div class="tm-carousel-track" style="transform:translateX(-` + strconv.Itoa(state.Index*100) + `%)">`)
	for _, testimonial := range config.Testimonials {
		builder.WriteString(`<div class="tm-carousel-slide">`)
		renderCard(builder, testimonial)
		builder.WriteString(`</div>`)
	}
	builder.WriteString(`</div>`)
	if state.Interactive() {
		builder.WriteString(`<button type="button" class="tm-nav tm-nav-next" data-action="next" aria-label="` +
			html.EscapeString(messages.NextLabel) + `">` + nextGlyph + `</button>`)
	}
	builder.WriteString(`</div>`)

	if !state.Interactive() {
		return
	}
	builder.WriteString(`<div class="tm-dots">`)
	for index := 0; index < count; index++ {
		className := "tm-dot"
		if index == state.Index {
			className = "tm-dot active"
		}
		builder.WriteString(`<button type="button" class="` + className + `" data-action="select" data-index="` +
			strconv.Itoa(index) + `" aria-label="` + html.EscapeString(messages.SlideLabel) + " " + strconv.Itoa(index+1) + `"></button>`)
	}
	builder.WriteString(`</div>`)
}
