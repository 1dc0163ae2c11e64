// Package llm wraps the text-generation providers behind a single Completer.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cmo/internal/infra"
)

const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// CompletionRequest is one text-generation call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float64
	// JSON asks the provider to answer with a JSON document only.
	JSON      bool
	MaxTokens int
}

// Completer produces text for a prompt.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider       string
	APIKey         string
	Model          string
	BaseURL        string
	Organization   string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// New builds the Completer named by opts.Provider.
func New(opts Options) (Completer, error) {
	var (
		c   Completer
		err error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case ProviderOpenAI, "":
		c, err = NewOpenAI(opts)
	case ProviderGemini:
		c, err = NewGemini(opts)
	case ProviderAnthropic:
		c, err = NewAnthropic(opts)
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", opts.Provider)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func httpClientFor(opts Options, fallback time.Duration) *http.Client {
	if opts.HTTPClient != nil {
		return opts.HTTPClient
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = fallback
	}
	return &http.Client{Timeout: timeout}
}
