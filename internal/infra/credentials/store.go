package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"cmo/internal/infra"
	"cmo/internal/sqlinline"
)

// Provider names under which integration tokens are stored.
const (
	ProviderN8N       = "n8n"
	ProviderExa       = "exa"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

var knownProviders = map[string]struct{}{
	ProviderN8N:       {},
	ProviderExa:       {},
	ProviderOpenAI:    {},
	ProviderGemini:    {},
	ProviderAnthropic: {},
}

// Store reads and writes third-party API tokens kept in the
// integration_tokens table, so keys can be rotated without a redeploy.
type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// IsKnownProvider reports whether provider names a supported integration.
func IsKnownProvider(provider string) bool {
	_, ok := knownProviders[strings.ToLower(strings.TrimSpace(provider))]
	return ok
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Resolve prefers a non-empty configured value and falls back to the stored
// token for provider.
func (s *Store) Resolve(ctx context.Context, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" {
		return v, nil
	}
	if s == nil {
		return "", nil
	}
	return s.Token(ctx, provider)
}

// SetToken upserts the token for provider.
func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !IsKnownProvider(provider) {
		return fmt.Errorf("unsupported provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s token is required", provider)
	}
	raw, err := json.Marshal(map[string]any{"source": "cmoctl"})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}
