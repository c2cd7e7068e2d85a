package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/ruleapi/internal/core/domain"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/ports"
)

var ErrUnauthorized = errors.New("unauthorized")

type AuthService struct {
	repo ports.APIKeyRepository
}

func NewAuthService(repo ports.APIKeyRepository) *AuthService {
	return &AuthService{repo: repo}
}

// Authenticate resolves an active API key from its plaintext token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, ErrUnauthorized
	}

	apiKey, err := s.repo.FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.APIKey{}, ErrUnauthorized
		}
		return domain.APIKey{}, err
	}
	if !apiKey.Active {
		return domain.APIKey{}, ErrUnauthorized
	}
	return apiKey, nil
}

// Bootstrap upserts an active key for token under name.
func (s *AuthService) Bootstrap(ctx context.Context, token, name string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("bootstrap token is empty")
	}
	if name == "" {
		name = "bootstrap"
	}
	return s.repo.Upsert(ctx, domain.APIKey{
		TokenHash: HashToken(token),
		Name:      name,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
}

func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
