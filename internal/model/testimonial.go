package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	TestimonialStatusPending  = "PENDING"
	TestimonialStatusApproved = "APPROVED"
	TestimonialStatusRejected = "REJECTED"

	TestimonialSourceForm = "form"
	TestimonialSourceAPI  = "api"

	DefaultTestimonialRating = 5

	testimonialTextMaxLength       = 4000
	testimonialAuthorNameMaxLength = 200
	testimonialEmailMaxLength      = 320
	testimonialCompanyMaxLength    = 200
	testimonialTitleMaxLength      = 200
)

var (
	ErrInvalidTestimonialProjectID = errors.New("invalid_testimonial_project_id")
	ErrMissingTestimonialText      = errors.New("missing_testimonial_text")
	ErrMissingTestimonialAuthor    = errors.New("missing_testimonial_author")
	ErrInvalidTestimonialEmail     = errors.New("invalid_testimonial_email")
	ErrInvalidTestimonialRating    = errors.New("invalid_testimonial_rating")
	ErrInvalidTestimonialStatus    = errors.New("invalid_testimonial_status")
	ErrInvalidTestimonialSource    = errors.New("invalid_testimonial_source")
)

// Testimonial is a customer statement collected for a project.
type Testimonial struct {
	ID            string    `gorm:"primaryKey;size:36"`
	ProjectID     string    `gorm:"index:idx_testimonials_project_status_created;not null;size:36"`
	FormID        string    `gorm:"index;size:36"`
	Text          string    `gorm:"not null;size:4000"`
	Rating        int       `gorm:"not null"`
	AuthorName    string    `gorm:"not null;size:200"`
	AuthorEmail   string    `gorm:"size:320"`
	AuthorCompany string    `gorm:"size:200"`
	AuthorTitle   string    `gorm:"size:200"`
	Status        string    `gorm:"index:idx_testimonials_project_status_created;not null;size:16"`
	Source        string    `gorm:"not null;size:16"`
	CreatedAt     time.Time `gorm:"index:idx_testimonials_project_status_created;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// TestimonialInput holds the raw values used to construct a Testimonial.
type TestimonialInput struct {
	ProjectID     string
	FormID        string
	Text          string
	Rating        int
	AuthorName    string
	AuthorEmail   string
	AuthorCompany string
	AuthorTitle   string
	Status        string
	Source        string
}

// NewTestimonial constructs a Testimonial with validated, normalized fields. A zero rating defaults to five.
func NewTestimonial(input TestimonialInput) (Testimonial, error) {
	projectID := strings.TrimSpace(input.ProjectID)
	if projectID == "" {
		return Testimonial{}, ErrInvalidTestimonialProjectID
	}

	text := strings.TrimSpace(input.Text)
	if text == "" {
		return Testimonial{}, ErrMissingTestimonialText
	}

	authorName := strings.TrimSpace(input.AuthorName)
	if authorName == "" {
		return Testimonial{}, ErrMissingTestimonialAuthor
	}

	authorEmail := strings.ToLower(strings.TrimSpace(input.AuthorEmail))
	if authorEmail != "" {
		if _, parseErr := mail.ParseAddress(authorEmail); parseErr != nil {
			return Testimonial{}, ErrInvalidTestimonialEmail
		}
	}

	rating := input.Rating
	if rating == 0 {
		rating = DefaultTestimonialRating
	}
	if rating < 1 || rating > 5 {
		return Testimonial{}, ErrInvalidTestimonialRating
	}

	status := strings.ToUpper(strings.TrimSpace(input.Status))
	if status == "" {
		status = TestimonialStatusPending
	}
	if !IsTestimonialStatus(status) {
		return Testimonial{}, ErrInvalidTestimonialStatus
	}

	source := strings.ToLower(strings.TrimSpace(input.Source))
	if source != TestimonialSourceForm && source != TestimonialSourceAPI {
		return Testimonial{}, ErrInvalidTestimonialSource
	}

	return Testimonial{
		ID:            uuid.NewString(),
		ProjectID:     projectID,
		FormID:        strings.TrimSpace(input.FormID),
		Text:          truncate(text, testimonialTextMaxLength),
		Rating:        rating,
		AuthorName:    truncate(authorName, testimonialAuthorNameMaxLength),
		AuthorEmail:   truncate(authorEmail, testimonialEmailMaxLength),
		AuthorCompany: truncate(strings.TrimSpace(input.AuthorCompany), testimonialCompanyMaxLength),
		AuthorTitle:   truncate(strings.TrimSpace(input.AuthorTitle), testimonialTitleMaxLength),
		Status:        status,
		Source:        source,
	}, nil
}

// IsTestimonialStatus reports whether the value is a known moderation status.
func IsTestimonialStatus(status string) bool {
	switch status {
	case TestimonialStatusPending, TestimonialStatusApproved, TestimonialStatusRejected:
		return true
	default:
		return false
	}
}

func truncate(input string, maxRunes int) string {
	runes := []rune(input)
	if len(runes) <= maxRunes {
		return input
	}
	return string(runes[:maxRunes])
}
