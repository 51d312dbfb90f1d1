package widget

import (
	"regexp"
	"strings"
)

const (
	ThemeModeLight = "light"
	ThemeModeDark  = "dark"

	DefaultPrimaryColor    = "#f59e0b"
	DefaultBackgroundColor = "#ffffff"
	DefaultTextColor       = "#1e293b"
	MaxRadiusPx            = 48

	DefaultColumns = 3
	MaxColumns     = 4

	MaxRating = 5
)

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Theme carries the parameterized presentation values applied through CSS variables.
type Theme struct {
	Mode       string `json:"mode"`
	Primary    string `json:"primaryColor"`
	Background string `json:"bgColor"`
	Text       string `json:"textColor"`
	RadiusPx   int    `json:"borderRadius"`
}

// NormalizeTheme replaces unusable values with defaults so they are safe to place inside a style attribute.
func NormalizeTheme(theme Theme) Theme {
	normalized := Theme{
		Mode:       ThemeModeLight,
		Primary:    normalizeHexColor(theme.Primary, DefaultPrimaryColor),
		Background: normalizeHexColor(theme.Background, DefaultBackgroundColor),
		Text:       normalizeHexColor(theme.Text, DefaultTextColor),
		RadiusPx:   theme.RadiusPx,
	}
	if strings.EqualFold(strings.TrimSpace(theme.Mode), ThemeModeDark) {
		normalized.Mode = ThemeModeDark
	}
	if normalized.RadiusPx < 0 {
		normalized.RadiusPx = 0
	}
	if normalized.RadiusPx > MaxRadiusPx {
		normalized.RadiusPx = MaxRadiusPx
	}
	return normalized
}

func normalizeHexColor(rawValue string, fallback string) string {
	trimmed := strings.TrimSpace(rawValue)
	if !hexColorPattern.MatchString(trimmed) {
		return fallback
	}
	return strings.ToLower(trimmed)
}

// Testimonial is the display projection of a stored testimonial.
type Testimonial struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorName    string `json:"authorName"`
	AuthorCompany string `json:"authorCompany,omitempty"`
	AuthorTitle   string `json:"authorTitle,omitempty"`
	Rating        *int   `json:"rating,omitempty"`
}

// Stars returns the number of filled stars. A missing rating counts as a full score.
func (testimonial Testimonial) Stars() int {
	if testimonial.Rating == nil {
		return MaxRating
	}
	return clampRating(*testimonial.Rating)
}

func clampRating(rating int) int {
	if rating < 0 {
		return 0
	}
	if rating > MaxRating {
		return MaxRating
	}
	return rating
}

// Config is the immutable snapshot a widget script is generated from.
type Config struct {
	ID           string        `json:"id"`
	Variant      Variant       `json:"type"`
	Theme        Theme         `json:"theme"`
	ShowBranding bool          `json:"showBranding"`
	Columns      int           `json:"columns"`
	Locale       string        `json:"locale"`
	Testimonials []Testimonial `json:"testimonials"`
}

// ConfigInput holds the raw values assembled by the data layer.
type ConfigInput struct {
	ID           string
	Variant      string
	Theme        Theme
	ShowBranding bool
	Columns      int
	Locale       string
	Testimonials []Testimonial
}

// NewConfig builds a normalized snapshot. Testimonial order is preserved; entries without display text are dropped.
func NewConfig(input ConfigInput) (Config, error) {
	widgetID := strings.TrimSpace(input.ID)
	if widgetID == "" {
		return Config{}, ErrMissingWidgetID
	}

	columns := input.Columns
	if columns <= 0 {
		columns = DefaultColumns
	}
	if columns > MaxColumns {
		columns = MaxColumns
	}

	testimonials := make([]Testimonial, 0, len(input.Testimonials))
	for _, testimonial := range input.Testimonials {
		text := strings.TrimSpace(testimonial.Text)
		if text == "" {
			continue
		}
		projected := Testimonial{
			ID:            strings.TrimSpace(testimonial.ID),
			Text:          text,
			AuthorName:    strings.TrimSpace(testimonial.AuthorName),
			AuthorCompany: strings.TrimSpace(testimonial.AuthorCompany),
			AuthorTitle:   strings.TrimSpace(testimonial.AuthorTitle),
		}
		stars := testimonial.Stars()
		projected.Rating = &stars
		testimonials = append(testimonials, projected)
	}

	return Config{
		ID:           widgetID,
		Variant:      ParseVariant(input.Variant),
		Theme:        NormalizeTheme(input.Theme),
		ShowBranding: input.ShowBranding,
		Columns:      columns,
		Locale:       ResolveLocale(input.Locale),
		Testimonials: testimonials,
	}, nil
}
