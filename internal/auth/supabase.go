package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SupabaseAuthenticator asks the hosted auth service who owns a token.
type SupabaseAuthenticator struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewSupabaseAuthenticator(baseURL, apiKey string, httpClient *http.Client) *SupabaseAuthenticator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &SupabaseAuthenticator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type supabaseUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (a *SupabaseAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("build user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if a.apiKey != "" {
		req.Header.Set("apikey", a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call identity provider: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("identity provider returned status %d", resp.StatusCode)
	}

	var user supabaseUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: user.ID, Email: user.Email}, nil
}
