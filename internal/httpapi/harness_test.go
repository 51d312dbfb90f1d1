package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/apikey"
	"github.com/MarkoPoloResearchLab/testimonio/internal/httpapi"
	"github.com/MarkoPoloResearchLab/testimonio/internal/storage"
	"github.com/MarkoPoloResearchLab/testimonio/internal/task"
	"github.com/MarkoPoloResearchLab/testimonio/internal/testutil"
	"github.com/MarkoPoloResearchLab/testimonio/internal/widget"
)

var testHarnessClock = time.Date(2026, time.May, 4, 15, 0, 0, 0, time.UTC)

type apiHarness struct {
	router   *gin.Engine
	database *gorm.DB
	fixtures testutil.Fixtures
	views    *task.ViewCounter
}

func buildAPIHarness(testingT *testing.T) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	logger, loggerErr := zap.NewDevelopment()
	require.NoError(testingT, loggerErr)

	database := testutil.OpenMigratedDatabase(testingT)
	metrics := httpapi.NewMetrics()
	views := task.NewViewCounter()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(httpapi.RequestLogger(logger))

	embedHandlers := httpapi.NewEmbedHandlers(storage.NewSnapshotStore(database, widget.LocaleSpanish), views, metrics, logger, "")
	router.GET("/api/embed/:widgetId", embedHandlers.EmbedJS)
	router.GET("/api/embed/:widgetId/preview", embedHandlers.Preview)

	submissionHandlers := httpapi.NewSubmissionHandlers(database, logger, metrics)
	router.POST("/api/submit/:slug", submissionHandlers.SubmitTestimonial)

	apiHandlers := httpapi.NewAPIHandlers(database, apikey.NewAuthenticator(database, func() time.Time { return testHarnessClock }), logger, metrics)
	apiGroup := router.Group("/api/v1")
	apiGroup.Use(apiHandlers.RequireAPIKey())
	apiGroup.GET("/testimonials", apiHandlers.ListTestimonials)
	apiGroup.POST("/testimonials", apiHandlers.CreateTestimonial)
	apiGroup.GET("/widgets", apiHandlers.ListWidgets)

	router.GET("/healthz", httpapi.Health)
	router.GET("/metrics", httpapi.MetricsHandler())

	return apiHarness{
		router:   router,
		database: database,
		fixtures: testutil.NewFixtures(testingT, database),
		views:    views,
	}
}

func performJSONRequest(testingT *testing.T, router *gin.Engine, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()
	var requestBody io.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		require.NoError(testingT, encodeErr)
		requestBody = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, requestBody)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSONBody(testingT *testing.T, recorder *httptest.ResponseRecorder, target any) {
	testingT.Helper()
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), target))
}
