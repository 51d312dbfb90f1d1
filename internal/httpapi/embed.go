package httpapi

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/testimonio/internal/storage"
	"github.com/MarkoPoloResearchLab/testimonio/internal/widget"
)

const (
	javaScriptContentType = "application/javascript; charset=utf-8"
	htmlContentType       = "text/html; charset=utf-8"
	embedCacheControl     = "public, max-age=60"

	embedBodyWidgetNotFound = "/* widget not found */"
	embedBodyRenderError    = "/* render error */"

	embedPathFormat = "%s/api/embed/%s"
)

//go:embed assets/preview.html.tmpl
var previewTemplateSource string

var previewTemplate = template.Must(template.New("preview").Option("missingkey=error").Parse(previewTemplateSource))

var previewHeadings = map[string]struct {
	title   string
	snippet string
}{
	widget.LocaleSpanish: {title: "Vista previa del widget", snippet: "Código para insertar"},
	widget.LocaleEnglish: {title: "Widget preview", snippet: "Embed code"},
}

// SnapshotLoader resolves the display snapshot of a widget.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, widgetID string) (widget.Config, error)
}

// ViewRecorder counts widget script loads.
type ViewRecorder interface {
	Record(widgetID string)
}

// EmbedHandlers serve the widget script and its preview page.
type EmbedHandlers struct {
	loader        SnapshotLoader
	views         ViewRecorder
	metrics       *Metrics
	logger        *zap.Logger
	publicBaseURL string
}

type previewPageData struct {
	Locale         string
	Title          string
	SnippetHeading string
	StyleElementID string
	Stylesheet     template.CSS
	WidgetID       string
	Markup         template.HTML
	Snippet        string
	ScriptURL      string
}

// NewEmbedHandlers builds EmbedHandlers. An empty public base URL derives script URLs from the request host.
func NewEmbedHandlers(loader SnapshotLoader, views ViewRecorder, metrics *Metrics, logger *zap.Logger, publicBaseURL string) *EmbedHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbedHandlers{
		loader:        loader,
		views:         views,
		metrics:       metrics,
		logger:        logger,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// EmbedJS serves the self-mounting script of a widget and counts the load as a view.
func (h *EmbedHandlers) EmbedJS(context *gin.Context) {
	start := time.Now()
	widgetID := strings.TrimSpace(context.Param("widgetId"))

	config, loadErr := h.loader.LoadSnapshot(context.Request.Context(), widgetID)
	if loadErr != nil {
		if errors.Is(loadErr, storage.ErrWidgetNotFound) {
			h.recordFailure(embedFailureNotFound)
			context.Data(http.StatusNotFound, javaScriptContentType, []byte(embedBodyWidgetNotFound))
			return
		}
		h.logger.Warn("embed_load_snapshot", zap.Error(loadErr), zap.String("widget_id", widgetID))
		h.recordFailure(embedFailureLoad)
		context.Data(http.StatusInternalServerError, javaScriptContentType, []byte(embedBodyRenderError))
		return
	}

	script, scriptErr := widget.Script(config)
	if scriptErr != nil {
		h.logger.Error("embed_render_script", zap.Error(scriptErr), zap.String("widget_id", widgetID))
		h.recordFailure(embedFailureRender)
		context.Data(http.StatusInternalServerError, javaScriptContentType, []byte(embedBodyRenderError))
		return
	}

	if h.views != nil {
		h.views.Record(config.ID)
	}
	if h.metrics != nil {
		h.metrics.EmbedRendersTotal.WithLabelValues(config.Variant.String()).Inc()
		h.metrics.EmbedDuration.Observe(time.Since(start).Seconds())
	}
	context.Header("Cache-Control", embedCacheControl)
	context.Data(http.StatusOK, javaScriptContentType, script)
}

// Preview serves a standalone page that mounts the widget and shows its embed snippet.
// The mount element starts with the server-rendered markup so the page reads the same before the script runs.
func (h *EmbedHandlers) Preview(context *gin.Context) {
	widgetID := strings.TrimSpace(context.Param("widgetId"))

	config, loadErr := h.loader.LoadSnapshot(context.Request.Context(), widgetID)
	if loadErr != nil {
		if errors.Is(loadErr, storage.ErrWidgetNotFound) {
			context.String(http.StatusNotFound, "widget not found")
			return
		}
		h.logger.Warn("preview_load_snapshot", zap.Error(loadErr), zap.String("widget_id", widgetID))
		context.String(http.StatusInternalServerError, "preview unavailable")
		return
	}

	scriptURL := fmt.Sprintf(embedPathFormat, h.baseURL(context.Request), config.ID)
	headings, known := previewHeadings[config.Locale]
	if !known {
		headings = previewHeadings[widget.DefaultLocale]
	}

	var page bytes.Buffer
	renderErr := previewTemplate.Execute(&page, previewPageData{
		Locale:         config.Locale,
		Title:          headings.title,
		SnippetHeading: headings.snippet,
		StyleElementID: widget.StyleElementID,
		Stylesheet:     template.CSS(widget.Stylesheet()),
		WidgetID:       config.ID,
		Markup:         template.HTML(widget.Render(config, widget.NewCarouselState(len(config.Testimonials)))),
		Snippet:        EmbedSnippet(scriptURL, config.ID),
		ScriptURL:      scriptURL,
	})
	if renderErr != nil {
		h.logger.Error("preview_render", zap.Error(renderErr), zap.String("widget_id", widgetID))
		context.String(http.StatusInternalServerError, "preview unavailable")
		return
	}
	context.Data(http.StatusOK, htmlContentType, page.Bytes())
}

// EmbedSnippet returns the markup a site owner pastes into their page.
func EmbedSnippet(scriptURL string, widgetID string) string {
	return fmt.Sprintf("<div %s=\"%s\"></div>\n<script src=\"%s\" async></script>", widget.MountAttribute, widgetID, scriptURL)
}

func (h *EmbedHandlers) baseURL(request *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if request.TLS != nil || strings.EqualFold(request.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + request.Host
}

func (h *EmbedHandlers) recordFailure(reason string) {
	if h.metrics == nil {
		return
	}
	h.metrics.EmbedFailuresTotal.WithLabelValues(reason).Inc()
}
