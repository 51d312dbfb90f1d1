package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
	"github.com/MarkoPoloResearchLab/testimonio/internal/storage"
)

// Fixtures seeds owner, project and widget records for tests.
type Fixtures struct {
	testingT *testing.T
	database *gorm.DB
}

// NewFixtures binds seeding helpers to a migrated database.
func NewFixtures(testingT *testing.T, database *gorm.DB) Fixtures {
	testingT.Helper()
	return Fixtures{testingT: testingT, database: database}
}

func (fixtures Fixtures) create(record any) {
	fixtures.testingT.Helper()
	if err := fixtures.database.Create(record).Error; err != nil {
		fixtures.testingT.Fatalf("seed %T: %v", record, err)
	}
}

// User seeds an account on the provided plan.
func (fixtures Fixtures) User(planName string) model.User {
	fixtures.testingT.Helper()
	identifier := storage.NewID()
	user := model.User{
		ID:    identifier,
		Email: fmt.Sprintf("owner-%s@example.com", identifier),
		Name:  "Owner",
		Plan:  planName,
	}
	fixtures.create(&user)
	return user
}

// Project seeds a project owned by the user.
func (fixtures Fixtures) Project(userID string) model.Project {
	fixtures.testingT.Helper()
	project := model.Project{ID: storage.NewID(), UserID: userID, Name: "Storefront"}
	fixtures.create(&project)
	return project
}

// Form seeds a collection form reachable by slug.
func (fixtures Fixtures) Form(projectID string, slug string) model.CollectionForm {
	fixtures.testingT.Helper()
	form := model.CollectionForm{
		ID:          storage.NewID(),
		ProjectID:   projectID,
		Slug:        slug,
		Title:       "Tell us about your visit",
		ThankYouMsg: "Gracias por tu testimonio",
	}
	fixtures.create(&form)
	return form
}

// Widget seeds a widget of the provided type. Callers adjust the returned record through Update when needed.
func (fixtures Fixtures) Widget(projectID string, widgetType string, showBranding bool) model.Widget {
	fixtures.testingT.Helper()
	storedWidget := model.Widget{
		ID:           storage.NewID(),
		ProjectID:    projectID,
		Name:         "Homepage",
		Type:         widgetType,
		Theme:        "light",
		PrimaryColor: "#f59e0b",
		BgColor:      "#ffffff",
		TextColor:    "#1e293b",
		BorderRadius: 12,
		Columns:      3,
		MaxItems:     10,
		ShowBranding: showBranding,
	}
	fixtures.create(&storedWidget)
	return storedWidget
}

// Testimonial seeds a testimonial with an explicit status and creation time.
func (fixtures Fixtures) Testimonial(projectID string, status string, text string, createdAt time.Time) model.Testimonial {
	fixtures.testingT.Helper()
	testimonial, buildErr := model.NewTestimonial(model.TestimonialInput{
		ProjectID:     projectID,
		Text:          text,
		Rating:        4,
		AuthorName:    "Juan Perez",
		AuthorCompany: "Acme",
		AuthorTitle:   "CEO",
		Status:        status,
		Source:        model.TestimonialSourceForm,
	})
	if buildErr != nil {
		fixtures.testingT.Fatalf("build testimonial: %v", buildErr)
	}
	testimonial.CreatedAt = createdAt
	fixtures.create(&testimonial)
	return testimonial
}

// APIKey seeds a stored key record for the provided hash.
func (fixtures Fixtures) APIKey(userID string, keyHash string, keyPrefix string, permissions ...string) model.APIKey {
	fixtures.testingT.Helper()
	apiKey := model.APIKey{
		ID:          storage.NewID(),
		UserID:      userID,
		Name:        "integration",
		KeyHash:     keyHash,
		KeyPrefix:   keyPrefix,
		Permissions: model.JoinPermissions(permissions...),
		IsActive:    true,
	}
	fixtures.create(&apiKey)
	return apiKey
}
