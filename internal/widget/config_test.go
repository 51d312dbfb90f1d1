package widget_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/testimonio/internal/widget"
)

func TestParseVariant(testingT *testing.T) {
	require.Equal(testingT, widget.VariantGrid, widget.ParseVariant(" grid "))
	require.Equal(testingT, widget.VariantWall, widget.ParseVariant("WALL"))
	require.Equal(testingT, widget.VariantSingle, widget.ParseVariant("Single"))
	require.Equal(testingT, widget.VariantCarousel, widget.ParseVariant("CAROUSEL"))
	require.Equal(testingT, widget.DefaultVariant, widget.ParseVariant("FOO"))
	require.Equal(testingT, widget.DefaultVariant, widget.ParseVariant(""))
}

func TestNewConfigRequiresWidgetID(testingT *testing.T) {
	_, configErr := widget.NewConfig(widget.ConfigInput{ID: "   "})
	require.ErrorIs(testingT, configErr, widget.ErrMissingWidgetID)
}

func TestNewConfigNormalizesSnapshot(testingT *testing.T) {
	input := widget.ConfigInput{
		ID:      " w-1 ",
		Variant: "wall",
		Theme: widget.Theme{
			Mode:       "DARK",
			Primary:    "#ABCDEF",
			Background: "red;background:url(x)",
			Text:       "#123",
			RadiusPx:   120,
		},
		Columns: 9,
		Locale:  "fr",
		Testimonials: []widget.Testimonial{
			{ID: "newest", Text: " First ", AuthorName: " Ana Gómez ", Rating: intPointer(7)},
			{ID: "blank", Text: "   ", AuthorName: "Nobody"},
			{ID: "older", Text: "Second", AuthorName: "Luis"},
		},
	}

	config, configErr := widget.NewConfig(input)
	require.NoError(testingT, configErr)

	require.Equal(testingT, "w-1", config.ID)
	require.Equal(testingT, widget.VariantWall, config.Variant)
	require.Equal(testingT, widget.ThemeModeDark, config.Theme.Mode)
	require.Equal(testingT, "#abcdef", config.Theme.Primary)
	require.Equal(testingT, widget.DefaultBackgroundColor, config.Theme.Background)
	require.Equal(testingT, "#123", config.Theme.Text)
	require.Equal(testingT, widget.MaxRadiusPx, config.Theme.RadiusPx)
	require.Equal(testingT, widget.MaxColumns, config.Columns)
	require.Equal(testingT, widget.DefaultLocale, config.Locale)

	require.Len(testingT, config.Testimonials, 2)
	require.Equal(testingT, "newest", config.Testimonials[0].ID)
	require.Equal(testingT, "First", config.Testimonials[0].Text)
	require.Equal(testingT, "Ana Gómez", config.Testimonials[0].AuthorName)
	require.Equal(testingT, 5, *config.Testimonials[0].Rating)
	require.Equal(testingT, "older", config.Testimonials[1].ID)
	require.Equal(testingT, 5, *config.Testimonials[1].Rating)

	input.Testimonials[0].Text = "mutated"
	require.Equal(testingT, "First", config.Testimonials[0].Text)
}

func TestNewConfigDefaultsColumns(testingT *testing.T) {
	config, configErr := widget.NewConfig(widget.ConfigInput{ID: "w"})
	require.NoError(testingT, configErr)
	require.Equal(testingT, widget.DefaultColumns, config.Columns)
	require.NotNil(testingT, config.Testimonials)
	require.Empty(testingT, config.Testimonials)
}

func TestNormalizeThemeClampsNegativeRadius(testingT *testing.T) {
	require.Equal(testingT, 0, widget.NormalizeTheme(widget.Theme{RadiusPx: -4}).RadiusPx)
}

func TestResolveLocale(testingT *testing.T) {
	require.Equal(testingT, widget.LocaleEnglish, widget.ResolveLocale("en_GB"))
	require.Equal(testingT, widget.LocaleSpanish, widget.ResolveLocale("ES"))
	require.Equal(testingT, widget.DefaultLocale, widget.ResolveLocale("de"))
}

func TestNormalizeThemeKeepsSquareCorners(testingT *testing.T) {
	normalized := widget.NormalizeTheme(widget.Theme{RadiusPx: 0})
	require.Zero(testingT, normalized.RadiusPx)

	config, configErr := widget.NewConfig(widget.ConfigInput{ID: "square", Theme: widget.Theme{RadiusPx: 0}})
	require.NoError(testingT, configErr)
	require.Contains(testingT, widget.RootStyle(config), "--tm-radius:0px")
}
