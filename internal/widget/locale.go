package widget

import "strings"

const (
	LocaleSpanish = "es"
	LocaleEnglish = "en"

	DefaultLocale = LocaleSpanish
)

// Messages holds the user-visible strings the runtime prints on its own.
type Messages struct {
	EmptyState    string `json:"emptyState"`
	BrandingLabel string `json:"brandingLabel"`
	PreviousLabel string `json:"previousLabel"`
	NextLabel     string `json:"nextLabel"`
	SlideLabel    string `json:"slideLabel"`
}

var messagesByLocale = map[string]Messages{
	LocaleSpanish: {
		EmptyState:    "No hay testimonios todavía",
		BrandingLabel: "Powered by Testimonio",
		PreviousLabel: "Anterior",
		NextLabel:     "Siguiente",
		SlideLabel:    "Ir al testimonio",
	},
	LocaleEnglish: {
		EmptyState:    "No testimonials yet",
		BrandingLabel: "Powered by Testimonio",
		PreviousLabel: "Previous",
		NextLabel:     "Next",
		SlideLabel:    "Go to testimonial",
	},
}

// ResolveLocale maps a requested locale onto a supported one, falling back to DefaultLocale.
func ResolveLocale(rawLocale string) string {
	normalized := strings.ToLower(strings.TrimSpace(rawLocale))
	if separatorIndex := strings.IndexAny(normalized, "-_"); separatorIndex > 0 {
		normalized = normalized[:separatorIndex]
	}
	if _, supported := messagesByLocale[normalized]; supported {
		return normalized
	}
	return DefaultLocale
}

// MessagesFor returns the strings for a locale.
func MessagesFor(locale string) Messages {
	return messagesByLocale[ResolveLocale(locale)]
}
