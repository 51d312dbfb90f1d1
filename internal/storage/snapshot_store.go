package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
	"github.com/MarkoPoloResearchLab/testimonio/internal/plan"
	"github.com/MarkoPoloResearchLab/testimonio/internal/widget"
)

const (
	// DefaultWidgetMaxItems caps a snapshot when the widget does not configure a limit.
	DefaultWidgetMaxItems = 10

	errorMessageWidgetNotFound   = "storage: widget not found"
	errorMessageLoadWidget       = "storage: load widget"
	errorMessageLoadOwnerPlan    = "storage: load widget owner plan"
	errorMessageLoadTestimonials = "storage: load widget testimonials"
	errorMessageIncrementViews   = "storage: increment widget views"
)

// ErrWidgetNotFound indicates no widget exists for the requested identifier.
var ErrWidgetNotFound = errors.New(errorMessageWidgetNotFound)

// SnapshotStore performs the read-only lookups a widget script is generated from.
type SnapshotStore struct {
	database *gorm.DB
	locale   string
}

// NewSnapshotStore builds a SnapshotStore rendering snapshots in the provided locale.
func NewSnapshotStore(database *gorm.DB, locale string) *SnapshotStore {
	return &SnapshotStore{
		database: database,
		locale:   widget.ResolveLocale(locale),
	}
}

// LoadSnapshot assembles the widget configuration and its approved testimonials, most recent first.
func (store *SnapshotStore) LoadSnapshot(ctx context.Context, widgetID string) (widget.Config, error) {
	normalizedWidgetID := strings.TrimSpace(widgetID)
	if normalizedWidgetID == "" {
		return widget.Config{}, ErrWidgetNotFound
	}

	var storedWidget model.Widget
	if err := store.database.WithContext(ctx).First(&storedWidget, "id = ?", normalizedWidgetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return widget.Config{}, ErrWidgetNotFound
		}
		return widget.Config{}, fmt.Errorf("%s: %w", errorMessageLoadWidget, err)
	}

	ownerPlan, planErr := store.ownerPlan(ctx, storedWidget.ProjectID)
	if planErr != nil {
		return widget.Config{}, planErr
	}

	maxItems := storedWidget.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultWidgetMaxItems
	}

	var storedTestimonials []model.Testimonial
	testimonialsErr := store.database.WithContext(ctx).
		Where("project_id = ? AND status = ?", storedWidget.ProjectID, model.TestimonialStatusApproved).
		Order("created_at DESC").
		Limit(maxItems).
		Find(&storedTestimonials).Error
	if testimonialsErr != nil {
		return widget.Config{}, fmt.Errorf("%s: %w", errorMessageLoadTestimonials, testimonialsErr)
	}

	projections := make([]widget.Testimonial, 0, len(storedTestimonials))
	for _, storedTestimonial := range storedTestimonials {
		rating := storedTestimonial.Rating
		projections = append(projections, widget.Testimonial{
			ID:            storedTestimonial.ID,
			Text:          storedTestimonial.Text,
			AuthorName:    storedTestimonial.AuthorName,
			AuthorCompany: storedTestimonial.AuthorCompany,
			AuthorTitle:   storedTestimonial.AuthorTitle,
			Rating:        &rating,
		})
	}

	return widget.NewConfig(widget.ConfigInput{
		ID:      storedWidget.ID,
		Variant: storedWidget.Type,
		Theme: widget.Theme{
			Mode:       storedWidget.Theme,
			Primary:    storedWidget.PrimaryColor,
			Background: storedWidget.BgColor,
			Text:       storedWidget.TextColor,
			RadiusPx:   storedWidget.BorderRadius,
		},
		ShowBranding: storedWidget.ShowBranding || ownerPlan.ShowBranding(),
		Columns:      storedWidget.Columns,
		Locale:       store.locale,
		Testimonials: projections,
	})
}

func (store *SnapshotStore) ownerPlan(ctx context.Context, projectID string) (plan.Plan, error) {
	var planNames []string
	err := store.database.WithContext(ctx).
		Model(&model.User{}).
		Joins("JOIN projects ON projects.user_id = users.id").
		Where("projects.id = ?", projectID).
		Limit(1).
		Pluck("users.plan", &planNames).Error
	if err != nil {
		return plan.Free, fmt.Errorf("%s: %w", errorMessageLoadOwnerPlan, err)
	}
	if len(planNames) == 0 {
		return plan.Free, nil
	}
	return plan.Parse(planNames[0]), nil
}

// IncrementWidgetViews adds batched view counts to the stored widget counters.
func IncrementWidgetViews(ctx context.Context, database *gorm.DB, viewsByWidgetID map[string]int64) error {
	if len(viewsByWidgetID) == 0 {
		return nil
	}
	return database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		for widgetID, views := range viewsByWidgetID {
			if views <= 0 {
				continue
			}
			updateErr := transaction.Model(&model.Widget{}).
				Where("id = ?", widgetID).
				UpdateColumn("views", gorm.Expr("views + ?", views)).Error
			if updateErr != nil {
				return fmt.Errorf("%s: %w", errorMessageIncrementViews, updateErr)
			}
		}
		return nil
	})
}
