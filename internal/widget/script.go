package widget

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"text/template"
)

//go:embed assets/runtime.js.tmpl
var runtimeJavaScriptSource string

//go:embed assets/widget.css
var stylesheetSource string

var runtimeJavaScriptTemplate = template.Must(template.New("runtime.js").Option("missingkey=error").Parse(runtimeJavaScriptSource))

// Stylesheet returns the namespaced CSS injected once per host page.
func Stylesheet() string {
	return stylesheetSource
}

type runtimeTemplateData struct {
	Snapshot           string
	RootStyle          string
	Messages           string
	Stylesheet         string
	MountAttribute     string
	StyleElementID     string
	BrandingURL        string
	DefaultVariant     string
	AutoplayIntervalMs int64
	MaxRating          int
}

// Script generates the self-contained runtime for a snapshot. All data is embedded; the script performs no network requests.
func Script(config Config) ([]byte, error) {
	if config.Testimonials == nil {
		config.Testimonials = []Testimonial{}
	}

	data := runtimeTemplateData{
		AutoplayIntervalMs: AutoplayInterval.Milliseconds(),
		MaxRating:          MaxRating,
	}
	literals := []struct {
		target *string
		value  any
	}{
		{target: &data.Snapshot, value: config},
		{target: &data.RootStyle, value: RootStyle(config)},
		{target: &data.Messages, value: MessagesFor(config.Locale)},
		{target: &data.Stylesheet, value: stylesheetSource},
		{target: &data.MountAttribute, value: MountAttribute},
		{target: &data.StyleElementID, value: StyleElementID},
		{target: &data.BrandingURL, value: BrandingURL},
		{target: &data.DefaultVariant, value: DefaultVariant},
	}
	for _, literal := range literals {
		encoded, encodeErr := json.Marshal(literal.value)
		if encodeErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncodeSnapshot, encodeErr)
		}
		*literal.target = string(encoded)
	}

	var buffer bytes.Buffer
	if executeErr := runtimeJavaScriptTemplate.Execute(&buffer, data); executeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderScript, executeErr)
	}
	return buffer.Bytes(), nil
}
