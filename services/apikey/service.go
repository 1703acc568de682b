package apikey

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"licensecore/pkg/errutil"
	"licensecore/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	repo repository.Repository[APIKey]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		repo: repository.ProvideStore[APIKey](p.DB),
	}
}

// CreateKey mints a new API key and returns its plaintext exactly
// once. Only the bcrypt hash of the secret is stored.
func (s *Service) CreateKey(ctx context.Context, scopes []string, createdBy string, expiresAt *time.Time) (string, *APIKey, error) {
	if len(scopes) == 0 {
		return "", nil, errutil.BadRequest("at least one scope is required", nil)
	}

	keyID, err := randomToken("lck_live_", 8)
	if err != nil {
		return "", nil, err
	}
	secret, err := randomToken("", 24)
	if err != nil {
		return "", nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	key := &APIKey{
		ID:         s.node.Generate().String(),
		KeyID:      keyID,
		SecretHash: string(hash),
		Scopes:     pq.StringArray(scopes),
		Status:     APIKeyStatusActive,
		ExpiresAt:  expiresAt,
	}
	if createdBy != "" {
		key.CreatedBy = &createdBy
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return "", nil, err
	}

	return keyID + "." + secret, key, nil
}

// Validate checks a raw "<key_id>.<secret>" credential and returns the
// granted scopes.
func (s *Service) Validate(ctx context.Context, rawKey string) ([]string, error) {
	keyID, secret, ok := strings.Cut(rawKey, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, errutil.Unauthorized("malformed api key", nil)
	}

	key, err := s.repo.FindOne(ctx, &APIKey{KeyID: keyID})
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, errutil.Unauthorized("unknown api key", nil)
	}

	if key.Status != APIKeyStatusActive {
		return nil, errutil.Unauthorized("api key is not active", nil)
	}
	if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
		return nil, errutil.Unauthorized("api key expired", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, errutil.Unauthorized("invalid api key secret", nil)
	}

	return []string(key.Scopes), nil
}

// Revoke deactivates a key permanently.
func (s *Service) Revoke(ctx context.Context, keyID string) error {
	res := s.db.WithContext(ctx).Model(&APIKey{}).
		Where("key_id = ? AND status = ?", keyID, APIKeyStatusActive).
		Update("status", APIKeyStatusRevoked)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errutil.NotFound("active api key not found", nil)
	}
	return nil
}

func randomToken(prefix string, n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
