package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
	"github.com/MarkoPoloResearchLab/testimonio/internal/plan"
)

const (
	defaultThankYouMessage = "¡Gracias por tu testimonio!"

	submissionRateWindow = 30 * time.Second
	submissionRateBurst  = 6

	submissionOutcomeAccepted    = "accepted"
	submissionOutcomeRejected    = "rejected"
	submissionOutcomeLimited     = "plan_limit"
	submissionOutcomeRateLimited = "rate_limited"
)

type submitTestimonialRequest struct {
	Text          string `json:"text"`
	Rating        int    `json:"rating"`
	AuthorName    string `json:"authorName"`
	AuthorEmail   string `json:"authorEmail"`
	AuthorCompany string `json:"authorCompany"`
	AuthorTitle   string `json:"authorTitle"`
}

// SubmissionHandlers accept testimonials from public collection forms.
type SubmissionHandlers struct {
	database *gorm.DB
	logger   *zap.Logger
	metrics  *Metrics
	limiter  *keyedLimiter
}

// NewSubmissionHandlers builds SubmissionHandlers allowing a short burst per client address.
func NewSubmissionHandlers(database *gorm.DB, logger *zap.Logger, metrics *Metrics) *SubmissionHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionHandlers{
		database: database,
		logger:   logger,
		metrics:  metrics,
		limiter:  newKeyedLimiter(rate.Every(submissionRateWindow/submissionRateBurst), submissionRateBurst),
	}
}

// SubmitTestimonial stores a pending testimonial for the form identified by slug.
func (h *SubmissionHandlers) SubmitTestimonial(context *gin.Context) {
	if !h.limiter.Allow(context.ClientIP()) {
		h.recordOutcome(submissionOutcomeRateLimited)
		context.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
		return
	}

	var payload submitTestimonialRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		h.recordOutcome(submissionOutcomeRejected)
		context.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	if strings.TrimSpace(payload.Text) == "" || strings.TrimSpace(payload.AuthorName) == "" {
		h.recordOutcome(submissionOutcomeRejected)
		context.JSON(http.StatusBadRequest, gin.H{"error": "missing_fields"})
		return
	}

	slug := strings.TrimSpace(context.Param("slug"))
	var form model.CollectionForm
	if err := h.database.WithContext(context.Request.Context()).First(&form, "slug = ?", slug).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.recordOutcome(submissionOutcomeRejected)
			context.JSON(http.StatusNotFound, gin.H{"error": "unknown_form"})
			return
		}
		h.logger.Warn("load_form", zap.Error(err), zap.String("slug", slug))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	ownerPlan, planErr := projectOwnerPlan(h.database.WithContext(context.Request.Context()), form.ProjectID)
	if planErr != nil {
		h.logger.Warn("load_owner_plan", zap.Error(planErr), zap.String("project_id", form.ProjectID))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	var currentCount int64
	if err := h.database.WithContext(context.Request.Context()).Model(&model.Testimonial{}).Where("project_id = ?", form.ProjectID).Count(&currentCount).Error; err != nil {
		h.logger.Warn("count_testimonials", zap.Error(err), zap.String("project_id", form.ProjectID))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}
	if !ownerPlan.CanCreateTestimonial(currentCount) {
		h.recordOutcome(submissionOutcomeLimited)
		context.JSON(http.StatusForbidden, gin.H{"error": "plan_limit_reached", "limit": ownerPlan.Limits().Testimonials})
		return
	}

	testimonial, buildErr := model.NewTestimonial(model.TestimonialInput{
		ProjectID:     form.ProjectID,
		FormID:        form.ID,
		Text:          payload.Text,
		Rating:        payload.Rating,
		AuthorName:    payload.AuthorName,
		AuthorEmail:   payload.AuthorEmail,
		AuthorCompany: payload.AuthorCompany,
		AuthorTitle:   payload.AuthorTitle,
		Status:        model.TestimonialStatusPending,
		Source:        model.TestimonialSourceForm,
	})
	if buildErr != nil {
		h.recordOutcome(submissionOutcomeRejected)
		context.JSON(http.StatusBadRequest, gin.H{"error": buildErr.Error()})
		return
	}

	saveErr := h.database.WithContext(context.Request.Context()).Transaction(func(transaction *gorm.DB) error {
		if err := transaction.Create(&testimonial).Error; err != nil {
			return err
		}
		return transaction.Model(&model.CollectionForm{}).
			Where("id = ?", form.ID).
			UpdateColumn("submissions", gorm.Expr("submissions + ?", 1)).Error
	})
	if saveErr != nil {
		h.logger.Warn("save_testimonial", zap.Error(saveErr), zap.String("form_id", form.ID))
		context.JSON(http.StatusInternalServerError, gin.H{"error": "save_failed"})
		return
	}

	h.recordOutcome(submissionOutcomeAccepted)
	message := strings.TrimSpace(form.ThankYouMsg)
	if message == "" {
		message = defaultThankYouMessage
	}
	context.JSON(http.StatusOK, gin.H{"success": true, "message": message})
}

func (h *SubmissionHandlers) recordOutcome(outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

func projectOwnerPlan(database *gorm.DB, projectID string) (plan.Plan, error) {
	var planNames []string
	err := database.Model(&model.User{}).
		Joins("JOIN projects ON projects.user_id = users.id").
		Where("projects.id = ?", projectID).
		Limit(1).
		Pluck("users.plan", &planNames).Error
	if err != nil {
		return plan.Free, err
	}
	if len(planNames) == 0 {
		return plan.Free, nil
	}
	return plan.Parse(planNames[0]), nil
}
