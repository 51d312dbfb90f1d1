package httpapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/testimonio/internal/httpapi"
	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
	"github.com/MarkoPoloResearchLab/testimonio/internal/widget"
)

const (
	embedContentType       = "application/javascript; charset=utf-8"
	embedTestimonialText   = "Excelente servicio y muy buena atencion"
	embedPendingText       = "Todavia en revision"
	embedRoutePattern      = "/api/embed/"
	embedPreviewPathSuffix = "/preview"
)

type failingSnapshotLoader struct {
	err error
}

func (loader failingSnapshotLoader) LoadSnapshot(context.Context, string) (widget.Config, error) {
	return widget.Config{}, loader.err
}

func TestEmbedJSServesWidgetScript(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	project := harness.fixtures.Project(harness.fixtures.User("PRO").ID)
	storedWidget := harness.fixtures.Widget(project.ID, "GRID", false)
	harness.fixtures.Testimonial(project.ID, model.TestimonialStatusApproved, embedTestimonialText, testHarnessClock)
	harness.fixtures.Testimonial(project.ID, model.TestimonialStatusPending, embedPendingText, testHarnessClock.Add(time.Minute))

	recorder := performJSONRequest(testingT, harness.router, http.MethodGet, embedRoutePattern+storedWidget.ID, nil, nil)

	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Equal(testingT, embedContentType, recorder.Header().Get("Content-Type"))
	require.Equal(testingT, "public, max-age=60", recorder.Header().Get("Cache-Control"))
	body := recorder.Body.String()
	require.Contains(testingT, body, embedTestimonialText)
	require.NotContains(testingT, body, embedPendingText)
	require.Contains(testingT, body, `"type":"GRID"`)
	require.Contains(testingT, body, `"showBranding":false`)
	require.Contains(testingT, body, storedWidget.ID)
}

func TestEmbedJSRecordsViews(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	storedWidget := harness.fixtures.Widget(harness.fixtures.Project(harness.fixtures.User("FREE").ID).ID, "CAROUSEL", false)

	for attempt := 0; attempt < 3; attempt++ {
		recorder := performJSONRequest(testingT, harness.router, http.MethodGet, embedRoutePattern+storedWidget.ID, nil, nil)
		require.Equal(testingT, http.StatusOK, recorder.Code)
	}
	require.Equal(testingT, int64(3), harness.views.Pending(storedWidget.ID))

	missing := performJSONRequest(testingT, harness.router, http.MethodGet, embedRoutePattern+"missing", nil, nil)
	require.Equal(testingT, http.StatusNotFound, missing.Code)
	require.Zero(testingT, harness.views.Pending("missing"))
}

func TestEmbedJSForcesBrandingForFreePlan(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	storedWidget := harness.fixtures.Widget(harness.fixtures.Project(harness.fixtures.User("FREE").ID).ID, "WALL", false)

	recorder := performJSONRequest(testingT, harness.router, http.MethodGet, embedRoutePattern+storedWidget.ID, nil, nil)
	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Contains(testingT, recorder.Body.String(), `"showBranding":true`)
}

func TestEmbedJSReportsUnknownWidget(testingT *testing.T) {
	harness := buildAPIHarness(testingT)

	recorder := performJSONRequest(testingT, harness.router, http.MethodGet, embedRoutePattern+"does-not-exist", nil, nil)

	require.Equal(testingT, http.StatusNotFound, recorder.Code)
	require.Equal(testingT, embedContentType, recorder.Header().Get("Content-Type"))
	require.Equal(testingT, "/* widget not found */", recorder.Body.String())
}

func TestEmbedJSReportsLoadFailure(testingT *testing.T) {
	gin.SetMode(gin.TestMode)
	handlers := httpapi.NewEmbedHandlers(failingSnapshotLoader{err: errors.New("database offline")}, nil, httpapi.NewMetrics(), nil, "")
	router := gin.New()
	router.GET("/api/embed/:widgetId", handlers.EmbedJS)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/embed/any", nil))

	require.Equal(testingT, http.StatusInternalServerError, recorder.Code)
	require.Equal(testingT, "/* render error */", recorder.Body.String())
}

func TestPreviewRendersMountSnippetAndServerMarkup(testingT *testing.T) {
	harness := buildAPIHarness(testingT)
	project := harness.fixtures.Project(harness.fixtures.User("PRO").ID)
	storedWidget := harness.fixtures.Widget(project.ID, "SINGLE", false)
	harness.fixtures.Testimonial(project.ID, model.TestimonialStatusApproved, embedTestimonialText, testHarnessClock)

	recorder := performJSONRequest(testingT, harness.router, http.MethodGet, embedRoutePattern+storedWidget.ID+embedPreviewPathSuffix, nil, nil)

	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Equal(testingT, "text/html; charset=utf-8", recorder.Header().Get("Content-Type"))
	body := recorder.Body.String()
	require.Contains(testingT, body, `<div `+widget.MountAttribute+`="`+storedWidget.ID+`"><div class="tm-widget" data-variant="SINGLE"`)
	require.Contains(testingT, body, embedTestimonialText)
	require.Contains(testingT, body, `<style id="`+widget.StyleElementID+`">`)
	require.Contains(testingT, body, `<script src="http://example.com/api/embed/`+storedWidget.ID+`" async></script>`)
	require.Contains(testingT, body, "&lt;div data-testimonio-widget=")
	require.Contains(testingT, body, "Vista previa del widget")
	require.Zero(testingT, harness.views.Pending(storedWidget.ID))
}

func TestPreviewReportsUnknownWidget(testingT *testing.T) {
	harness := buildAPIHarness(testingT)

	recorder := performJSONRequest(testingT, harness.router, http.MethodGet, embedRoutePattern+"missing"+embedPreviewPathSuffix, nil, nil)
	require.Equal(testingT, http.StatusNotFound, recorder.Code)
}

func TestEmbedSnippetUsesMountAttribute(testingT *testing.T) {
	snippet := httpapi.EmbedSnippet("https://testimonio.app/api/embed/w-1", "w-1")
	lines := strings.Split(snippet, "\n")
	require.Len(testingT, lines, 2)
	require.Equal(testingT, `<div data-testimonio-widget="w-1"></div>`, lines[0])
	require.Equal(testingT, `<script src="https://testimonio.app/api/embed/w-1" async></script>`, lines[1])
}

func TestEmbedHandlersPreferConfiguredBaseURL(testingT *testing.T) {
	gin.SetMode(gin.TestMode)
	config, configErr := widget.NewConfig(widget.ConfigInput{ID: "w-1"})
	require.NoError(testingT, configErr)
	handlers := httpapi.NewEmbedHandlers(staticSnapshotLoader{config: config}, nil, nil, nil, "https://cdn.testimonio.app/")
	router := gin.New()
	router.GET("/api/embed/:widgetId/preview", handlers.Preview)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/embed/w-1/preview", nil))

	require.Equal(testingT, http.StatusOK, recorder.Code)
	require.Contains(testingT, recorder.Body.String(), `src="https://cdn.testimonio.app/api/embed/w-1"`)
	require.Contains(testingT, recorder.Body.String(), "tm-empty")
}

type staticSnapshotLoader struct {
	config widget.Config
}

func (loader staticSnapshotLoader) LoadSnapshot(context.Context, string) (widget.Config, error) {
	return loader.config, nil
}
