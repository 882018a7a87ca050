package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
)

// Credentials live in the OS keyring under one service name, keyed by kind
// and provider ("oauth_anthropic", "apikey_openai", ...).
const keyringService = "quill"

// tokenExpiryBuffer refreshes tokens slightly early so an in-flight request
// never races the real expiry.
const tokenExpiryBuffer = 5 * time.Minute

// TokenData holds OAuth token information
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	Expiry       time.Time `json:"expiry"`
	Provider     string    `json:"provider"`
}

func oauthKey(provider string) string  { return "oauth_" + provider }
func apiKeyKey(provider string) string { return "apikey_" + provider }

// SaveTokenToKeyring stores a provider's OAuth tokens in the OS keyring.
func SaveTokenToKeyring(provider, accessToken, refreshToken string, expiry time.Time) error {
	payload, err := json.Marshal(TokenData{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Expiry:       expiry,
		Provider:     provider,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token data: %w", err)
	}
	if err := keyring.Set(keyringService, oauthKey(provider), string(payload)); err != nil {
		return fmt.Errorf("failed to store token in keyring: %w", err)
	}
	return nil
}

// GetTokenFromKeyring loads a provider's OAuth tokens. A missing entry
// returns (nil, nil).
func GetTokenFromKeyring(provider string) (*TokenData, error) {
	payload, err := keyring.Get(keyringService, oauthKey(provider))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve token from keyring: %w", err)
	}
	var data TokenData
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token data: %w", err)
	}
	return &data, nil
}

// DeleteTokenFromKeyring removes a provider's OAuth tokens.
func DeleteTokenFromKeyring(provider string) error {
	if err := keyring.Delete(keyringService, oauthKey(provider)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete token from keyring: %w", err)
	}
	return nil
}

// SaveAPIKeyToKeyring stores a provider API key in the OS keyring.
func SaveAPIKeyToKeyring(provider, apiKey string) error {
	if err := keyring.Set(keyringService, apiKeyKey(provider), apiKey); err != nil {
		return fmt.Errorf("failed to store API key in keyring: %w", err)
	}
	return nil
}

// GetAPIKeyFromKeyring loads a provider API key. A missing entry returns
// ("", nil).
func GetAPIKeyFromKeyring(provider string) (string, error) {
	apiKey, err := keyring.Get(keyringService, apiKeyKey(provider))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve API key from keyring: %w", err)
	}
	return apiKey, nil
}

// DeleteAPIKeyFromKeyring removes a provider API key.
func DeleteAPIKeyFromKeyring(provider string) error {
	if err := keyring.Delete(keyringService, apiKeyKey(provider)); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete API key from keyring: %w", err)
	}
	return nil
}

// IsTokenExpired reports whether the token is missing or within the refresh
// buffer of its expiry.
func IsTokenExpired(data *TokenData) bool {
	return data == nil || time.Now().After(data.Expiry.Add(-tokenExpiryBuffer))
}
