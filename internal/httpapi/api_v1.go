package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/apikey"
	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
)

const (
	apiPrincipalContextKey = "testimonio_api_principal"

	apiStatusFilterAll  = "all"
	apiDefaultPageLimit = 50
	apiMaxPageLimit     = 100

	apiKeyRequestsPerSecond = 5
	apiKeyRequestBurst      = 20
)

// KeyAuthenticator resolves a raw API key into its principal and records admitted use.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, key string) (apikey.Principal, error)
	RecordUse(ctx context.Context, principal *apikey.Principal) error
}

type apiTestimonialView struct {
	ID            string    `json:"id"`
	Text          string    `json:"text"`
	Rating        int       `json:"rating"`
	AuthorName    string    `json:"authorName"`
	AuthorEmail   string    `json:"authorEmail,omitempty"`
	AuthorCompany string    `json:"authorCompany,omitempty"`
	AuthorTitle   string    `json:"authorTitle,omitempty"`
	Status        string    `json:"status"`
	Source        string    `json:"source"`
	CreatedAt     time.Time `json:"createdAt"`
}

type apiWidgetView struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Theme        string    `json:"theme"`
	PrimaryColor string    `json:"primaryColor"`
	Views        int64     `json:"views"`
	CreatedAt    time.Time `json:"createdAt"`
}

type apiPagination struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

type createAPITestimonialRequest struct {
	Text          string `json:"text"`
	Rating        int    `json:"rating"`
	AuthorName    string `json:"authorName"`
	AuthorEmail   string `json:"authorEmail"`
	AuthorCompany string `json:"authorCompany"`
	AuthorTitle   string `json:"authorTitle"`
	Status        string `json:"status"`
}

// APIHandlers serve the key-authenticated public API.
type APIHandlers struct {
	database      *gorm.DB
	authenticator KeyAuthenticator
	logger        *zap.Logger
	metrics       *Metrics
	limiter       *keyedLimiter
}

// NewAPIHandlers builds APIHandlers.
func NewAPIHandlers(database *gorm.DB, authenticator KeyAuthenticator, logger *zap.Logger, metrics *Metrics) *APIHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandlers{
		database:      database,
		authenticator: authenticator,
		logger:        logger,
		metrics:       metrics,
		limiter:       newKeyedLimiter(rate.Limit(apiKeyRequestsPerSecond), apiKeyRequestBurst),
	}
}

// RequireAPIKey authenticates the request key and applies the per-key rate limit.
func (h *APIHandlers) RequireAPIKey() gin.HandlerFunc {
	return func(context *gin.Context) {
		principal, authErr := h.authenticator.Authenticate(context.Request.Context(), apikey.FromRequest(context.Request))
		if authErr != nil {
			switch {
			case errors.Is(authErr, apikey.ErrMissingKey):
				h.abort(context, http.StatusUnauthorized, "api_key_required")
			case errors.Is(authErr, apikey.ErrInvalidKey),
				errors.Is(authErr, apikey.ErrInactiveKey),
				errors.Is(authErr, apikey.ErrExpiredKey),
				errors.Is(authErr, apikey.ErrPlanNotEligible):
				h.abort(context, http.StatusUnauthorized, "invalid_api_key")
			default:
				h.logger.Warn("authenticate_api_key", zap.Error(authErr))
				h.abort(context, http.StatusInternalServerError, "internal_error")
			}
			return
		}
		if !h.limiter.Allow(principal.Key.ID) {
			h.abort(context, http.StatusTooManyRequests, "rate_limited")
			return
		}
		if recordErr := h.authenticator.RecordUse(context.Request.Context(), &principal); recordErr != nil {
			h.logger.Warn("record_api_key_usage", zap.Error(recordErr))
			h.abort(context, http.StatusInternalServerError, "internal_error")
			return
		}
		context.Set(apiPrincipalContextKey, principal)
		context.Next()
		h.recordRequest(context, context.Writer.Status())
	}
}

// ListTestimonials pages through the key owner's testimonials, most recent first.
func (h *APIHandlers) ListTestimonials(context *gin.Context) {
	principal := currentPrincipal(context)

	status := strings.TrimSpace(context.Query("status"))
	if status == "" {
		status = model.TestimonialStatusApproved
	}
	if !strings.EqualFold(status, apiStatusFilterAll) {
		status = strings.ToUpper(status)
		if !model.IsTestimonialStatus(status) {
			context.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status"})
			return
		}
	}
	limit := parseBoundedInt(context.Query("limit"), apiDefaultPageLimit, 1, apiMaxPageLimit)
	offset := parseBoundedInt(context.Query("offset"), 0, 0, -1)

	query := h.database.WithContext(context.Request.Context()).
		Model(&model.Testimonial{}).
		Where("project_id IN (?)", h.ownerProjectIDs(principal.Owner.ID))
	if !strings.EqualFold(status, apiStatusFilterAll) {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		h.logger.Warn("count_api_testimonials", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	var testimonials []model.Testimonial
	if err := query.Session(&gorm.Session{}).Order("created_at DESC").Limit(limit).Offset(offset).Find(&testimonials).Error; err != nil {
		h.logger.Warn("list_api_testimonials", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	views := make([]apiTestimonialView, 0, len(testimonials))
	for _, testimonial := range testimonials {
		views = append(views, newAPITestimonialView(testimonial))
	}
	context.JSON(http.StatusOK, gin.H{
		"data": views,
		"pagination": apiPagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: int64(offset+limit) < total,
		},
	})
}

// CreateTestimonial stores a testimonial in the key owner's first project. Requires the write permission.
func (h *APIHandlers) CreateTestimonial(context *gin.Context) {
	principal := currentPrincipal(context)
	if !principal.Key.HasPermission(model.APIKeyPermissionWrite) {
		context.JSON(http.StatusForbidden, gin.H{"error": "write_permission_required"})
		return
	}

	var payload createAPITestimonialRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	if strings.TrimSpace(payload.Text) == "" || strings.TrimSpace(payload.AuthorName) == "" {
		context.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	var project model.Project
	projectErr := h.database.WithContext(context.Request.Context()).
		Where("user_id = ?", principal.Owner.ID).
		Order("created_at ASC").
		First(&project).Error
	if projectErr != nil {
		if errors.Is(projectErr, gorm.ErrRecordNotFound) {
			context.JSON(http.StatusBadRequest, gin.H{"error": "no_project"})
			return
		}
		h.logger.Warn("load_api_project", zap.Error(projectErr))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	testimonial, buildErr := model.NewTestimonial(model.TestimonialInput{
		ProjectID:     project.ID,
		Text:          payload.Text,
		Rating:        payload.Rating,
		AuthorName:    payload.AuthorName,
		AuthorEmail:   payload.AuthorEmail,
		AuthorCompany: payload.AuthorCompany,
		AuthorTitle:   payload.AuthorTitle,
		Status:        payload.Status,
		Source:        model.TestimonialSourceAPI,
	})
	if buildErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{"error": buildErr.Error()})
		return
	}
	if err := h.database.WithContext(context.Request.Context()).Create(&testimonial).Error; err != nil {
		h.logger.Warn("save_api_testimonial", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	context.JSON(http.StatusCreated, gin.H{"data": newAPITestimonialView(testimonial)})
}

// ListWidgets returns the key owner's widgets, most recent first.
func (h *APIHandlers) ListWidgets(context *gin.Context) {
	principal := currentPrincipal(context)

	var widgets []model.Widget
	err := h.database.WithContext(context.Request.Context()).
		Where("project_id IN (?)", h.ownerProjectIDs(principal.Owner.ID)).
		Order("created_at DESC").
		Find(&widgets).Error
	if err != nil {
		h.logger.Warn("list_api_widgets", zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	views := make([]apiWidgetView, 0, len(widgets))
	for _, storedWidget := range widgets {
		views = append(views, apiWidgetView{
			ID:           storedWidget.ID,
			Name:         storedWidget.Name,
			Type:         storedWidget.Type,
			Theme:        storedWidget.Theme,
			PrimaryColor: storedWidget.PrimaryColor,
			Views:        storedWidget.Views,
			CreatedAt:    storedWidget.CreatedAt,
		})
	}
	context.JSON(http.StatusOK, gin.H{"data": views})
}

func (h *APIHandlers) ownerProjectIDs(userID string) *gorm.DB {
	return h.database.Model(&model.Project{}).Select("id").Where("user_id = ?", userID)
}

func (h *APIHandlers) abort(context *gin.Context, status int, code string) {
	context.AbortWithStatusJSON(status, gin.H{"error": code})
	h.recordRequest(context, status)
}

func (h *APIHandlers) recordRequest(context *gin.Context, status int) {
	if h.metrics == nil {
		return
	}
	route := context.FullPath()
	if route == "" {
		route = "unmatched"
	}
	h.metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func currentPrincipal(context *gin.Context) apikey.Principal {
	value, exists := context.Get(apiPrincipalContextKey)
	if !exists {
		return apikey.Principal{}
	}
	principal, _ := value.(apikey.Principal)
	return principal
}

func newAPITestimonialView(testimonial model.Testimonial) apiTestimonialView {
	return apiTestimonialView{
		ID:            testimonial.ID,
		Text:          testimonial.Text,
		Rating:        testimonial.Rating,
		AuthorName:    testimonial.AuthorName,
		AuthorEmail:   testimonial.AuthorEmail,
		AuthorCompany: testimonial.AuthorCompany,
		AuthorTitle:   testimonial.AuthorTitle,
		Status:        testimonial.Status,
		Source:        testimonial.Source,
		CreatedAt:     testimonial.CreatedAt,
	}
}

// parseBoundedInt parses a query value, falling back on blanks and garbage. A negative maximum means unbounded.
func parseBoundedInt(raw string, fallback int, minimum int, maximum int) int {
	parsed, parseErr := strconv.Atoi(strings.TrimSpace(raw))
	if parseErr != nil {
		return fallback
	}
	if parsed < minimum {
		return minimum
	}
	if maximum >= 0 && parsed > maximum {
		return maximum
	}
	return parsed
}
