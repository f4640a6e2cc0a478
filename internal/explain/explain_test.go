package explain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eargollo/fraudscan/internal/detect"
)

type providerFunc func(ctx context.Context, req detect.ExplainRequest) (string, error)

func (providerFunc) Name() string { return "func" }

func (f providerFunc) Explain(ctx context.Context, req detect.ExplainRequest) (string, error) {
	return f(ctx, req)
}

func requests(amounts ...float64) []detect.ExplainRequest {
	at := time.Date(2025, 6, 1, 14, 30, 5, 0, time.UTC)
	out := make([]detect.ExplainRequest, len(amounts))
	for i, a := range amounts {
		out[i] = detect.ExplainRequest{Amount: a, Timestamp: at}
	}
	return out
}

func TestExplainBatchKeepsInputOrder(t *testing.T) {
	svc := NewService(providerFunc(func(_ context.Context, req detect.ExplainRequest) (string, error) {
		// Later requests finish first.
		time.Sleep(time.Duration(100-req.Amount) * time.Millisecond)
		return fmt.Sprintf("amount %.0f", req.Amount), nil
	}), 4, time.Second)

	got := svc.ExplainBatch(context.Background(), requests(10, 20, 30, 40, 50))
	assert.Equal(t, []string{"amount 10", "amount 20", "amount 30", "amount 40", "amount 50"}, got)
}

func TestExplainBatchFailuresAreEmpty(t *testing.T) {
	svc := NewService(providerFunc(func(_ context.Context, req detect.ExplainRequest) (string, error) {
		switch req.Amount {
		case 2:
			return "", errors.New("quota exceeded")
		case 3:
			panic("provider bug")
		}
		return "ok", nil
	}), 2, time.Second)

	got := svc.ExplainBatch(context.Background(), requests(1, 2, 3, 4))
	assert.Equal(t, []string{"ok", "", "", "ok"}, got)
}

func TestExplainBatchBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	svc := NewService(providerFunc(func(context.Context, detect.ExplainRequest) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return "x", nil
	}), 3, time.Second)

	got := svc.ExplainBatch(context.Background(), requests(make([]float64, 20)...))
	assert.Len(t, got, 20)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Zero(t, inFlight.Load(), "all requests joined before return")
}

func TestExplainBatchTimesOutSlowRequests(t *testing.T) {
	svc := NewService(providerFunc(func(ctx context.Context, req detect.ExplainRequest) (string, error) {
		if req.Amount == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast", nil
	}), 2, 20*time.Millisecond)

	start := time.Now()
	got := svc.ExplainBatch(context.Background(), requests(1, 2))
	assert.Equal(t, []string{"", "fast"}, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExplainBatchCancelledContext(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(providerFunc(func(context.Context, detect.ExplainRequest) (string, error) {
		calls.Add(1)
		return "x", nil
	}), 2, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := svc.ExplainBatch(ctx, requests(1, 2, 3))
	assert.Equal(t, []string{"", "", ""}, got)
	assert.Zero(t, calls.Load())
}

func TestPrompt(t *testing.T) {
	p := Prompt(requests(1234.5)[0])
	assert.Equal(t, "Explain in simple terms why this credit card transaction might be fraudulent. Be concise. "+
		"Amount=$1234.5, Timestamp='2025-06-01 14:30:05'", p)
}

func TestTemplate(t *testing.T) {
	text, err := Template{}.Explain(context.Background(), requests(42)[0])
	require.NoError(t, err)
	assert.Equal(t, "ML Anomaly Detection: Transaction of $42.00 flagged for review.", text)
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	p, err := NewProvider(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, ProviderTemplate, p.Name())

	_, err = NewProvider(ctx, Options{Provider: ProviderGemini})
	require.Error(t, err, "remote provider without key")

	_, err = NewProvider(ctx, Options{Provider: "carrier-pigeon"})
	require.Error(t, err)

	p, err = NewProvider(ctx, Options{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
}

func TestOpenAIProvider(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop",
			"message":{"role":"assistant","content":"  Unusual amount at night.  "}}]}`)
	}))
	defer srv.Close()

	p := NewOpenAI(Options{APIKey: "test-key", BaseURL: srv.URL + "/v1/", Model: "m"})
	text, err := p.Explain(context.Background(), requests(99)[0])
	require.NoError(t, err)
	assert.Equal(t, "Unusual amount at night.", text)
	assert.Contains(t, gotBody, "Amount=$99")
}

func TestGeminiProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Large late-night purchase."}]}}]}`)
	}))
	defer srv.Close()

	p, err := NewGemini(context.Background(), Options{APIKey: "test-key", BaseURL: srv.URL, Model: "gemini-test"})
	require.NoError(t, err)
	text, err := p.Explain(context.Background(), requests(5000)[0])
	require.NoError(t, err)
	assert.Equal(t, "Large late-night purchase.", text)
}
