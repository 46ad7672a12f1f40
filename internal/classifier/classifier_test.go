package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

type staticCompleter struct {
	response string
	err      error
	calls    int
}

func (s *staticCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestClassifier(t *testing.T, enabled bool, provider ChatCompleter) *Classifier {
	t.Helper()
	cfg := config.ClassifierConfig{Enabled: enabled}
	return NewSeeded(cfg, provider, zap.NewNop(), 42)
}

func assertFallback(t *testing.T, result domain.ClassificationResult) {
	t.Helper()
	if !domain.KnownCategory(result.Category) {
		t.Fatalf("fallback category %q not in vocabulary", result.Category)
	}
	found := false
	for _, expl := range fallbackExplanations {
		if result.Explanation == expl {
			found = true
		}
	}
	if !found {
		t.Fatalf("unexpected fallback explanation %q", result.Explanation)
	}
	if result.Confidence < 0.50 || result.Confidence > 0.90 {
		t.Fatalf("fallback confidence %v outside [0.50, 0.90]", result.Confidence)
	}
}

func TestClassifyDisabledNeverCallsProvider(t *testing.T) {
	provider := &staticCompleter{response: `{"category":"Billing"}`}
	c := newTestClassifier(t, false, provider)

	result := c.Classify(context.Background(), "subject", "body")

	if provider.calls != 0 {
		t.Fatalf("provider called %d times, want 0", provider.calls)
	}
	assertFallback(t, result)
}

func TestClassifyNilProviderFallsBack(t *testing.T) {
	c := newTestClassifier(t, true, nil)
	assertFallback(t, c.Classify(context.Background(), "s", "b"))
}

func TestClassifyProviderErrorFallsBack(t *testing.T) {
	provider := &staticCompleter{err: errors.New("upstream unavailable")}
	c := newTestClassifier(t, true, provider)

	result := c.Classify(context.Background(), "cannot log in", "details")

	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}
	assertFallback(t, result)
}

func TestClassifyMalformedJSONFallsBack(t *testing.T) {
	provider := &staticCompleter{response: "Sure! The category is Technical."}
	c := newTestClassifier(t, true, provider)
	assertFallback(t, c.Classify(context.Background(), "s", "b"))
}

func TestClassifyMissingCategoryKeyFallsBack(t *testing.T) {
	provider := &staticCompleter{response: `{"explanation":"looks technical","confidence":0.8}`}
	c := newTestClassifier(t, true, provider)
	assertFallback(t, c.Classify(context.Background(), "s", "b"))
}

func TestClassifyWellFormedResponse(t *testing.T) {
	provider := &staticCompleter{response: `{"category":"Bug Report","explanation":"crash on save","confidence":0.87}`}
	c := newTestClassifier(t, true, provider)

	result := c.Classify(context.Background(), "app crashes", "repro steps")

	if result.Category != "Bug Report" {
		t.Errorf("category = %q, want Bug Report", result.Category)
	}
	if result.Explanation != "crash on save" {
		t.Errorf("explanation = %q", result.Explanation)
	}
	if result.Confidence != 0.87 {
		t.Errorf("confidence = %v, want 0.87", result.Confidence)
	}
}

func TestClassifyDefaultsForPartialResponse(t *testing.T) {
	provider := &staticCompleter{response: `{"category":""}`}
	c := newTestClassifier(t, true, provider)

	result := c.Classify(context.Background(), "s", "b")

	if result.Category != "General" {
		t.Errorf("category = %q, want General", result.Category)
	}
	if result.Explanation != "AI classification failed" {
		t.Errorf("explanation = %q", result.Explanation)
	}
	if result.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", result.Confidence)
	}
}

func TestClassifyClampsConfidence(t *testing.T) {
	cases := []struct {
		raw  float64
		want float64
	}{
		{raw: 1.7, want: 1.0},
		{raw: -0.2, want: 0.0},
	}
	for _, tc := range cases {
		provider := &staticCompleter{
			response: fmt.Sprintf(`{"category":"Account","confidence":%v}`, tc.raw),
		}
		c := newTestClassifier(t, true, provider)
		result := c.Classify(context.Background(), "s", "b")
		if result.Confidence != tc.want {
			t.Errorf("confidence for raw %v = %v, want %v", tc.raw, result.Confidence, tc.want)
		}
	}
}

func TestClassifyFallbackCoversVocabulary(t *testing.T) {
	c := newTestClassifier(t, false, nil)
	seen := map[string]bool{}
	for i := 0; i < 500; i++ {
		seen[c.Classify(context.Background(), "s", "b").Category] = true
	}
	for _, cat := range domain.Categories {
		if !seen[cat] {
			t.Errorf("category %q never produced by fallback", cat)
		}
	}
}

func TestOpenAIClientComplete(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-3.5-turbo" {
			t.Errorf("model = %q", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"category":"Technical"}`}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", "", 0.3, 150).WithBaseURL(srv.URL)
	raw, err := client.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if raw != `{"category":"Technical"}` {
		t.Fatalf("content = %q", raw)
	}
	if calls.Load() != 1 {
		t.Fatalf("server hit %d times", calls.Load())
	}
}

func TestOpenAIClientReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limit exceeded"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", "", 0.3, 150).WithBaseURL(srv.URL)
	if _, err := client.Complete(context.Background(), "s", "u"); err == nil {
		t.Fatal("expected error")
	}
}
