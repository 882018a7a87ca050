package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/fake"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// getLLMClient creates an LLM client for the configured provider, loading
// credentials from the keyring when the config has none.
func getLLMClient(config *Config) (llms.Model, error) {
	if config.LLM.AuthToken == "" && config.LLM.APIKey == "" {
		tokenData, err := GetTokenFromKeyring(config.LLM.Provider)
		if err == nil && tokenData != nil {
			if IsTokenExpired(tokenData) {
				slog.Info("token expired, attempting refresh", "provider", config.LLM.Provider)

				if config.LLM.Provider == "anthropic" {
					auth := &AuthAnthropic{}
					newAccessToken, refreshErr := auth.access()
					if refreshErr == nil {
						slog.Info("token refresh successful", "provider", config.LLM.Provider)
						config.LLM.AuthToken = newAccessToken

						updatedTokenData, _ := GetTokenFromKeyring(config.LLM.Provider)
						if updatedTokenData != nil {
							config.LLM.RefreshToken = updatedTokenData.RefreshToken
						}
					} else {
						slog.Warn("token refresh failed, falling back to API key",
							"provider", config.LLM.Provider, "error", refreshErr)
						apiKey, err := GetAPIKeyFromKeyring(config.LLM.Provider)
						if err == nil && apiKey != "" {
							config.LLM.APIKey = apiKey
						}
					}
				} else {
					apiKey, err := GetAPIKeyFromKeyring(config.LLM.Provider)
					if err == nil && apiKey != "" {
						config.LLM.APIKey = apiKey
					}
				}
			} else {
				config.LLM.AuthToken = tokenData.AccessToken
				config.LLM.RefreshToken = tokenData.RefreshToken
			}
		} else {
			apiKey, err := GetAPIKeyFromKeyring(config.LLM.Provider)
			if err == nil && apiKey != "" {
				config.LLM.APIKey = apiKey
			}
		}
	}

	if config.LLM.AuthToken == "" && config.LLM.APIKey == "" && config.LLM.Provider != "fake" && config.LLM.Provider != "ollama" {
		return nil, fmt.Errorf("no authentication configured for %s provider. Use '/login' in interactive mode to authenticate", config.LLM.Provider)
	}

	switch config.LLM.Provider {
	case "fake":
		return fake.NewFakeLLM([]string{}), nil

	case "ollama":
		opts := []ollama.Option{
			ollama.WithModel(config.LLM.Model),
		}
		if config.LLM.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(config.LLM.BaseURL))
		}
		return ollama.New(opts...)

	case "openai":
		opts := []openai.Option{
			openai.WithModel(config.LLM.Model),
		}
		if config.LLM.APIKey != "" {
			opts = append(opts, openai.WithToken(config.LLM.APIKey))
		}
		if config.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.LLM.BaseURL))
		}
		return openai.New(opts...)

	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithModel(config.LLM.Model),
		}

		// OAuth access tokens take precedence over API keys. The SDK
		// requires a non-empty token, so a placeholder goes in and the
		// transport supplies the real credentials.
		if config.LLM.AuthToken != "" {
			opts = append(opts, anthropic.WithToken("oauth-placeholder"))
			httpClient := &http.Client{
				Transport: &anthropicOAuthTransport{
					token: config.LLM.AuthToken,
					base:  http.DefaultTransport,
				},
			}
			opts = append(opts, anthropic.WithHTTPClient(httpClient))
		} else if config.LLM.APIKey != "" {
			opts = append(opts, anthropic.WithToken(config.LLM.APIKey))
			httpClient := &http.Client{
				Transport: &anthropicAPIKeyTransport{base: http.DefaultTransport},
			}
			opts = append(opts, anthropic.WithHTTPClient(httpClient))
		}
		if config.LLM.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(config.LLM.BaseURL))
		}
		return anthropic.New(opts...)

	case "googleai":
		apiKey := config.LLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
			if apiKey == "" {
				return nil, fmt.Errorf("missing Google AI API key. Set it in the config file or via GEMINI_API_KEY environment variable")
			}
		}
		opts := []googleai.Option{
			googleai.WithDefaultModel(config.LLM.Model),
			googleai.WithAPIKey(apiKey),
		}
		return googleai.New(context.Background(), opts...)

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", config.LLM.Provider)
	}
}

// anthropicOAuthTransport adds OAuth headers for the Anthropic API.
type anthropicOAuthTransport struct {
	token string
	base  http.RoundTripper
}

func (t *anthropicOAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())

	if t.token != "" {
		r.Header.Set("Authorization", "Bearer "+t.token)
	}

	// oauth-2025-04-20 must come first for OAuth mode.
	r.Header.Set("anthropic-beta",
		"oauth-2025-04-20,claude-code-20250219,interleaved-thinking-2025-05-14,fine-grained-tool-streaming-2025-05-14")

	// The x-api-key header must not be present alongside a Bearer token.
	r.Header.Del("x-api-key")
	r.Header.Del("X-Api-Key")

	if baseURL := os.Getenv("ANTHROPIC_BASE_URL"); baseURL != "" {
		if parsedURL, err := url.Parse(baseURL + "/v1/messages"); err == nil {
			r.URL = parsedURL
		}
	}

	if t.base == nil {
		t.base = http.DefaultTransport
	}
	return t.base.RoundTrip(r)
}

// anthropicAPIKeyTransport adds beta headers for API key authentication.
type anthropicAPIKeyTransport struct {
	base http.RoundTripper
}

func (t *anthropicAPIKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())

	r.Header.Set("anthropic-beta", "claude-code-20250219,interleaved-thinking-2025-05-14,fine-grained-tool-streaming-2025-05-14")

	if t.base == nil {
		t.base = http.DefaultTransport
	}
	return t.base.RoundTrip(r)
}
