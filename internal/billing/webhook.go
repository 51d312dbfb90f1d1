// Package billing keeps account plans in step with payment processor subscriptions.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
	"github.com/MarkoPoloResearchLab/testimonio/internal/plan"
)

const (
	// SignatureHeader carries the processor signature of a webhook payload.
	SignatureHeader = "Stripe-Signature"

	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"

	metadataUserIDKey = "userId"
)

var (
	ErrMissingWebhookSecret = errors.New("billing: missing webhook secret")
	ErrInvalidSignature     = errors.New("billing: invalid webhook signature")
	ErrMalformedEvent       = errors.New("billing: malformed subscription event")
	ErrUpdateUser           = errors.New("billing: update user plan")
)

// Outcome describes what a processed event changed.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
)

// WebhookProcessor verifies and applies subscription events.
type WebhookProcessor struct {
	database *gorm.DB
	catalog  plan.PriceCatalog
	secret   string
	logger   *zap.Logger
}

// NewWebhookProcessor builds a WebhookProcessor.
func NewWebhookProcessor(database *gorm.DB, catalog plan.PriceCatalog, secret string, logger *zap.Logger) *WebhookProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookProcessor{
		database: database,
		catalog:  catalog,
		secret:   strings.TrimSpace(secret),
		logger:   logger,
	}
}

// Process verifies the payload signature and applies the event. Events that do not concern subscriptions are acknowledged and ignored.
func (processor *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	if processor.secret == "" {
		return OutcomeIgnored, ErrMissingWebhookSecret
	}
	event, constructErr := webhook.ConstructEventWithOptions(payload, signature, processor.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if constructErr != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrInvalidSignature, constructErr)
	}

	eventType := string(event.Type)
	switch eventType {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
	default:
		processor.logger.Debug("billing_event_ignored", zap.String("event_type", eventType))
		return OutcomeIgnored, nil
	}
	if event.Data == nil {
		return OutcomeIgnored, ErrMalformedEvent
	}

	var subscription stripe.Subscription
	if decodeErr := json.Unmarshal(event.Data.Raw, &subscription); decodeErr != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrMalformedEvent, decodeErr)
	}
	userID := strings.TrimSpace(subscription.Metadata[metadataUserIDKey])
	if userID == "" {
		processor.logger.Warn("billing_event_without_user", zap.String("event_type", eventType), zap.String("subscription_id", subscription.ID))
		return OutcomeIgnored, nil
	}

	updates := processor.userUpdates(eventType, &subscription)
	result := processor.database.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return OutcomeIgnored, fmt.Errorf("%w: %v", ErrUpdateUser, result.Error)
	}
	if result.RowsAffected == 0 {
		processor.logger.Warn("billing_event_unknown_user", zap.String("event_type", eventType), zap.String("user_id", userID))
		return OutcomeIgnored, nil
	}

	processor.logger.Info("billing_plan_updated",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Any("plan", updates["plan"]),
	)
	return OutcomeApplied, nil
}

func (processor *WebhookProcessor) userUpdates(eventType string, subscription *stripe.Subscription) map[string]any {
	if eventType == EventSubscriptionDeleted {
		return map[string]any{
			"plan":                      plan.Free.String(),
			"stripe_subscription_id":    "",
			"stripe_price_id":           "",
			"stripe_current_period_end": time.Time{},
		}
	}

	priceID := ""
	if subscription.Items != nil && len(subscription.Items.Data) > 0 && subscription.Items.Data[0].Price != nil {
		priceID = subscription.Items.Data[0].Price.ID
	}
	updates := map[string]any{
		"plan":                      processor.catalog.PlanForPrice(priceID).String(),
		"stripe_subscription_id":    subscription.ID,
		"stripe_price_id":           priceID,
		"stripe_current_period_end": time.Unix(subscription.CurrentPeriodEnd, 0).UTC(),
	}
	if subscription.Customer != nil && subscription.Customer.ID != "" {
		updates["stripe_customer_id"] = subscription.Customer.ID
	}
	return updates
}
