package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/testimonio/internal/billing"
)

const maxWebhookPayloadBytes = int64(65536)

// WebhookProcessor applies verified payment processor events.
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) (billing.Outcome, error)
}

// BillingHandlers receive payment processor webhooks.
type BillingHandlers struct {
	processor WebhookProcessor
	logger    *zap.Logger
	metrics   *Metrics
}

// NewBillingHandlers builds BillingHandlers.
func NewBillingHandlers(processor WebhookProcessor, logger *zap.Logger, metrics *Metrics) *BillingHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingHandlers{processor: processor, logger: logger, metrics: metrics}
}

// StripeWebhook verifies and applies a subscription event.
func (h *BillingHandlers) StripeWebhook(context *gin.Context) {
	payload, readErr := io.ReadAll(io.LimitReader(context.Request.Body, maxWebhookPayloadBytes))
	if readErr != nil {
		h.recordOutcome("unreadable")
		context.JSON(http.StatusBadRequest, gin.H{"error": "webhook_error"})
		return
	}

	outcome, processErr := h.processor.Process(context.Request.Context(), payload, context.GetHeader(billing.SignatureHeader))
	if processErr != nil {
		switch {
		case errors.Is(processErr, billing.ErrInvalidSignature), errors.Is(processErr, billing.ErrMalformedEvent):
			h.logger.Warn("stripe_webhook_rejected", zap.Error(processErr))
			h.recordOutcome("rejected")
			context.JSON(http.StatusBadRequest, gin.H{"error": "webhook_error"})
		case errors.Is(processErr, billing.ErrMissingWebhookSecret):
			h.recordOutcome("disabled")
			context.JSON(http.StatusServiceUnavailable, gin.H{"error": "billing_disabled"})
		default:
			h.logger.Error("stripe_webhook_failed", zap.Error(processErr))
			h.recordOutcome("failed")
			context.JSON(http.StatusInternalServerError, gin.H{"error": "webhook_processing_failed"})
		}
		return
	}

	h.recordOutcome(string(outcome))
	context.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *BillingHandlers) recordOutcome(outcome string) {
	if h.metrics == nil {
		return
	}
	h.metrics.WebhookEventsTotal.WithLabelValues(outcome).Inc()
}
