package main

import (
	"fmt"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/apikey"
	"github.com/MarkoPoloResearchLab/testimonio/internal/billing"
	"github.com/MarkoPoloResearchLab/testimonio/internal/httpapi"
	"github.com/MarkoPoloResearchLab/testimonio/internal/plan"
	"github.com/MarkoPoloResearchLab/testimonio/internal/storage"
	"github.com/MarkoPoloResearchLab/testimonio/internal/task"
)

const (
	publicRouteEmbed         = "/api/embed/:widgetId"
	publicRouteEmbedPreview  = "/api/embed/:widgetId/preview"
	publicRouteSubmit        = "/api/submit/:slug"
	publicRouteStripeWebhook = "/api/stripe/webhook"
	apiRoutePrefix           = "/api/v1"
	apiRouteTestimonials     = "/testimonials"
	apiRouteWidgets          = "/widgets"
	routeHealth              = "/healthz"
	routeMetrics             = "/metrics"
	corsOriginWildcard       = "*"
	corsHeaderAuthorization  = "Authorization"
	corsHeaderContentType    = "Content-Type"
	corsHeaderAPIKey         = "X-API-Key"
	httpMethodGet            = "GET"
	httpMethodOptions        = "OPTIONS"
	httpMethodPost           = "POST"

	trustedProxiesErrorMessage = "invalid trusted proxies"
)

var (
	corsAllowedMethods = []string{httpMethodPost, httpMethodGet, httpMethodOptions}
	corsAllowedHeaders = []string{corsHeaderAuthorization, corsHeaderContentType, corsHeaderAPIKey}
	corsExposedHeaders = []string{corsHeaderContentType}
)

// serverComponents are the long-lived collaborators a router is built from.
type serverComponents struct {
	database      *gorm.DB
	logger        *zap.Logger
	metrics       *httpapi.Metrics
	viewCounter   *task.ViewCounter
	configuration ServerConfig
}

func publicCORS() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     []string{corsOriginWildcard},
		AllowMethods:     corsAllowedMethods,
		AllowHeaders:     corsAllowedHeaders,
		ExposeHeaders:    corsExposedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	})
}

// buildRouter assembles the route groups for the serve mode. Forwarding headers are honored only from trusted proxies.
func buildRouter(components serverComponents) (*gin.Engine, error) {
	router := gin.New()
	if trustErr := router.SetTrustedProxies(components.configuration.TrustedProxies); trustErr != nil {
		return nil, fmt.Errorf("%s: %w", trustedProxiesErrorMessage, trustErr)
	}
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(components.logger))
	router.Use(publicCORS())

	router.GET(routeHealth, httpapi.Health)
	router.GET(routeMetrics, httpapi.MetricsHandler())

	if components.configuration.ServeMode.ServesEmbed() {
		registerEmbedRoutes(router, components)
	}
	if components.configuration.ServeMode.ServesAPI() {
		registerAPIRoutes(router, components)
	}
	return router, nil
}

func registerEmbedRoutes(router *gin.Engine, components serverComponents) {
	snapshotStore := storage.NewSnapshotStore(components.database, components.configuration.WidgetLocale)
	embedHandlers := httpapi.NewEmbedHandlers(snapshotStore, components.viewCounter, components.metrics, components.logger, components.configuration.PublicBaseURL)
	submissionHandlers := httpapi.NewSubmissionHandlers(components.database, components.logger, components.metrics)

	router.GET(publicRouteEmbed, embedHandlers.EmbedJS)
	router.GET(publicRouteEmbedPreview, embedHandlers.Preview)
	router.POST(publicRouteSubmit, submissionHandlers.SubmitTestimonial)
}

func registerAPIRoutes(router *gin.Engine, components serverComponents) {
	authenticator := apikey.NewAuthenticator(components.database, nil)
	apiHandlers := httpapi.NewAPIHandlers(components.database, authenticator, components.logger, components.metrics)

	apiGroup := router.Group(apiRoutePrefix)
	apiGroup.Use(apiHandlers.RequireAPIKey())
	apiGroup.GET(apiRouteTestimonials, apiHandlers.ListTestimonials)
	apiGroup.POST(apiRouteTestimonials, apiHandlers.CreateTestimonial)
	apiGroup.GET(apiRouteWidgets, apiHandlers.ListWidgets)

	catalog := plan.NewPriceCatalog(components.configuration.StripeProPriceIDs, components.configuration.StripeBusinessPriceIDs)
	processor := billing.NewWebhookProcessor(components.database, catalog, components.configuration.StripeWebhookSecret, components.logger)
	billingHandlers := httpapi.NewBillingHandlers(processor, components.logger, components.metrics)
	router.POST(publicRouteStripeWebhook, billingHandlers.StripeWebhook)
}
