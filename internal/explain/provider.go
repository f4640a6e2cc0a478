// Package explain fetches human-readable fraud explanations for flagged
// transactions from a text generation provider.
package explain

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/eargollo/fraudscan/internal/detect"
)

// Provider produces one explanation for one flagged transaction.
type Provider interface {
	Name() string
	Explain(ctx context.Context, req detect.ExplainRequest) (string, error)
}

// Provider names accepted by NewProvider.
const (
	ProviderTemplate = "template"
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
)

// Default models per remote provider.
const (
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
)

// ErrEmptyResponse is returned when a provider answers without text.
var ErrEmptyResponse = errors.New("empty explanation")

// Options selects and configures a provider.
type Options struct {
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the provider endpoint.
	BaseURL string
}

// NewProvider builds the provider named in opts. Remote providers need an
// API key.
func NewProvider(ctx context.Context, opts Options) (Provider, error) {
	switch opts.Provider {
	case "", ProviderTemplate:
		return Template{}, nil
	case ProviderGemini, ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("%s provider: no API key configured", opts.Provider)
		}
		if opts.Provider == ProviderGemini {
			return NewGemini(ctx, opts)
		}
		return NewOpenAI(opts), nil
	default:
		return nil, fmt.Errorf("unknown explanation provider %q", opts.Provider)
	}
}

// Prompt is the instruction sent to remote providers for req.
func Prompt(req detect.ExplainRequest) string {
	return "Explain in simple terms why this credit card transaction might be fraudulent. Be concise. " +
		"Amount=$" + strconv.FormatFloat(req.Amount, 'f', -1, 64) +
		", Timestamp='" + req.Timestamp.UTC().Format("2006-01-02 15:04:05") + "'"
}

// Template explains offline from the amount alone.
type Template struct{}

func (Template) Name() string { return ProviderTemplate }

func (Template) Explain(_ context.Context, req detect.ExplainRequest) (string, error) {
	return fmt.Sprintf("ML Anomaly Detection: Transaction of $%.2f flagged for review.", req.Amount), nil
}
