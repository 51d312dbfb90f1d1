// Package plan holds the subscription tiers and the limits each tier grants.
package plan

import (
	"strings"
)

// Plan is an account subscription tier.
type Plan string

const (
	Free     Plan = "FREE"
	Pro      Plan = "PRO"
	Business Plan = "BUSINESS"

	// Unlimited marks a limit that never blocks creation.
	Unlimited = -1
)

// Limits describes what a tier allows.
type Limits struct {
	Testimonials        int
	Forms               int
	Widgets             int
	ShowBranding        bool
	WhatsApp            bool
	Analytics           bool
	APIAccess           bool
	ImportGoogleReviews bool
}

var limitsByPlan = map[Plan]Limits{
	Free: {
		Testimonials: 50,
		Forms:        5,
		Widgets:      5,
		ShowBranding: true,
	},
	Pro: {
		Testimonials:        100,
		Forms:               Unlimited,
		Widgets:             Unlimited,
		Analytics:           true,
		ImportGoogleReviews: true,
	},
	Business: {
		Testimonials:        Unlimited,
		Forms:               Unlimited,
		Widgets:             Unlimited,
		WhatsApp:            true,
		Analytics:           true,
		APIAccess:           true,
		ImportGoogleReviews: true,
	},
}

// Parse resolves a stored plan name; unknown values fall back to Free.
func Parse(rawValue string) Plan {
	candidate := Plan(strings.ToUpper(strings.TrimSpace(rawValue)))
	if _, known := limitsByPlan[candidate]; known {
		return candidate
	}
	return Free
}

// Limits returns the limits of the plan.
func (p Plan) Limits() Limits {
	if limits, known := limitsByPlan[p]; known {
		return limits
	}
	return limitsByPlan[Free]
}

// ShowBranding reports whether widgets of this plan must carry attribution.
func (p Plan) ShowBranding() bool {
	return p.Limits().ShowBranding
}

// APIAccess reports whether keys issued to this plan may call the public API.
func (p Plan) APIAccess() bool {
	return p.Limits().APIAccess
}

func (p Plan) CanCreateTestimonial(currentCount int64) bool {
	return withinLimit(p.Limits().Testimonials, currentCount)
}

func (p Plan) CanCreateForm(currentCount int64) bool {
	return withinLimit(p.Limits().Forms, currentCount)
}

func (p Plan) CanCreateWidget(currentCount int64) bool {
	return withinLimit(p.Limits().Widgets, currentCount)
}

func withinLimit(limit int, currentCount int64) bool {
	if limit == Unlimited {
		return true
	}
	return currentCount < int64(limit)
}

// String returns the stored name of the plan.
func (p Plan) String() string {
	return string(p)
}
