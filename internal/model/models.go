package model

import "time"

// User is an account owner. Plan mirrors the payment processor subscription.
type User struct {
	ID                     string    `gorm:"primaryKey;size:36"`
	Email                  string    `gorm:"uniqueIndex;not null;size:320"`
	Name                   string    `gorm:"size:200"`
	Plan                   string    `gorm:"not null;size:16;default:FREE"`
	StripeCustomerID       string    `gorm:"size:255;index"`
	StripeSubscriptionID   string    `gorm:"size:255"`
	StripePriceID          string    `gorm:"size:255"`
	StripeCurrentPeriodEnd time.Time `gorm:""`
	CreatedAt              time.Time `gorm:"autoCreateTime"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime"`
}

// Project groups the forms, widgets and testimonials of one product or site.
type Project struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"index;not null;size:36"`
	Name      string    `gorm:"not null;size:200"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// CollectionForm is the public submission form reachable by slug.
type CollectionForm struct {
	ID          string    `gorm:"primaryKey;size:36"`
	ProjectID   string    `gorm:"index;not null;size:36"`
	Slug        string    `gorm:"uniqueIndex;not null;size:120"`
	Title       string    `gorm:"size:200"`
	ThankYouMsg string    `gorm:"size:500"`
	Submissions int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// Widget is an embeddable display configuration for a project's approved testimonials.
type Widget struct {
	ID           string    `gorm:"primaryKey;size:36"`
	ProjectID    string    `gorm:"index;not null;size:36"`
	Name         string    `gorm:"not null;size:200"`
	Type         string    `gorm:"not null;size:16;default:CAROUSEL"`
	Theme        string    `gorm:"not null;size:16;default:light"`
	PrimaryColor string    `gorm:"not null;size:16;default:#f59e0b"`
	BgColor      string    `gorm:"not null;size:16;default:#ffffff"`
	TextColor    string    `gorm:"not null;size:16;default:#1e293b"`
	BorderRadius int       `gorm:"not null;default:12"`
	Columns      int       `gorm:"not null;default:3"`
	MaxItems     int       `gorm:"not null;default:10"`
	ShowBranding bool      `gorm:"not null"`
	Views        int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}
