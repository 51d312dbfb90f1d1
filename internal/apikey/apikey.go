// Package apikey issues and verifies public API credentials.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/testimonio/internal/model"
	"github.com/MarkoPoloResearchLab/testimonio/internal/plan"
)

const (
	// Prefix starts every issued key.
	Prefix = "tm_"
	// HeaderName carries a key when the bearer scheme is not used.
	HeaderName = "X-API-Key"

	keyBodyLength     = 32
	displayPrefixSize = 8
	keyAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	bearerScheme      = "Bearer "
)

var (
	ErrMissingKey      = errors.New("api key required")
	ErrInvalidKey      = errors.New("invalid api key")
	ErrInactiveKey     = errors.New("api key is inactive")
	ErrExpiredKey      = errors.New("api key has expired")
	ErrPlanNotEligible = errors.New("api access requires the business plan")
)

// Generate returns a new random key and the prefix shown to its owner.
func Generate() (string, string, error) {
	var builder strings.Builder
	builder.Grow(len(Prefix) + keyBodyLength)
	builder.WriteString(Prefix)
	alphabetSize := big.NewInt(int64(len(keyAlphabet)))
	for index := 0; index < keyBodyLength; index++ {
		position, randomErr := rand.Int(rand.Reader, alphabetSize)
		if randomErr != nil {
			return "", "", fmt.Errorf("generate api key: %w", randomErr)
		}
		builder.WriteByte(keyAlphabet[position.Int64()])
	}
	key := builder.String()
	return key, key[:len(Prefix)+displayPrefixSize], nil
}

// Hash returns the hex SHA-256 digest stored in place of the key.
func Hash(key string) string {
	digest := sha256.Sum256([]byte(key))
	return hex.EncodeToString(digest[:])
}

// FromRequest extracts a key from the Authorization bearer header or the X-API-Key header.
func FromRequest(request *http.Request) string {
	authorization := strings.TrimSpace(request.Header.Get("Authorization"))
	if len(authorization) > len(bearerScheme) && strings.EqualFold(authorization[:len(bearerScheme)], bearerScheme) {
		return strings.TrimSpace(authorization[len(bearerScheme):])
	}
	return strings.TrimSpace(request.Header.Get(HeaderName))
}

// Principal is an authenticated key together with its owner.
type Principal struct {
	Key   model.APIKey
	Owner model.User
}

// Authenticator resolves keys against storage.
type Authenticator struct {
	database *gorm.DB
	clock    func() time.Time
}

// NewAuthenticator builds an Authenticator. A nil clock uses time.Now.
func NewAuthenticator(database *gorm.DB, clock func() time.Time) *Authenticator {
	if clock == nil {
		clock = time.Now
	}
	return &Authenticator{database: database, clock: clock}
}

// Authenticate validates the key and resolves its owner without recording use.
func (authenticator *Authenticator) Authenticate(ctx context.Context, key string) (Principal, error) {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" {
		return Principal{}, ErrMissingKey
	}
	if !strings.HasPrefix(trimmedKey, Prefix) {
		return Principal{}, ErrInvalidKey
	}

	var storedKey model.APIKey
	lookupErr := authenticator.database.WithContext(ctx).Where("key_hash = ?", Hash(trimmedKey)).First(&storedKey).Error
	if lookupErr != nil {
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return Principal{}, ErrInvalidKey
		}
		return Principal{}, fmt.Errorf("lookup api key: %w", lookupErr)
	}
	if !storedKey.IsActive {
		return Principal{}, ErrInactiveKey
	}
	now := authenticator.clock().UTC()
	if storedKey.Expired(now) {
		return Principal{}, ErrExpiredKey
	}

	var owner model.User
	if ownerErr := authenticator.database.WithContext(ctx).First(&owner, "id = ?", storedKey.UserID).Error; ownerErr != nil {
		if errors.Is(ownerErr, gorm.ErrRecordNotFound) {
			return Principal{}, ErrInvalidKey
		}
		return Principal{}, fmt.Errorf("lookup api key owner: %w", ownerErr)
	}
	if !plan.Parse(owner.Plan).APIAccess() {
		return Principal{}, ErrPlanNotEligible
	}

	return Principal{Key: storedKey, Owner: owner}, nil
}

// RecordUse stamps the key's last use and increments its usage count. Callers record only requests they admit.
func (authenticator *Authenticator) RecordUse(ctx context.Context, principal *Principal) error {
	now := authenticator.clock().UTC()
	updateErr := authenticator.database.WithContext(ctx).
		Model(&model.APIKey{}).
		Where("id = ?", principal.Key.ID).
		Updates(map[string]any{
			"last_used_at": now,
			"usage_count":  gorm.Expr("usage_count + 1"),
		}).Error
	if updateErr != nil {
		return fmt.Errorf("record api key usage: %w", updateErr)
	}
	principal.Key.LastUsedAt = now
	principal.Key.UsageCount++
	return nil
}
