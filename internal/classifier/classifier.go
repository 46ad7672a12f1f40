// Package classifier assigns help-desk categories to ticket text. It calls an
// external chat-completion provider and absorbs every failure into a random
// fallback, so Classify never returns an error.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

const systemPrompt = `You are a help desk ticket classifier. Analyze the ticket content and return a JSON response with exactly these keys:

{
    "category": "one of: Technical, Billing, Account, Feature Request, Bug Report, General",
    "explanation": "brief explanation of why this category was chosen",
    "confidence": "number between 0.0 and 1.0 indicating confidence level"
}

Choose the most appropriate category based on the ticket content. Be concise but accurate.`

var fallbackExplanations = []string{
	"Random classification - AI disabled",
	"Fallback classification",
	"Default category assignment",
}

// ChatCompleter is one synchronous call to a text-classification provider.
type ChatCompleter interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Classifier produces a category/explanation/confidence triple from ticket text.
type Classifier struct {
	enabled  bool
	provider ChatCompleter
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a classifier with a time-seeded fallback source.
func New(cfg config.ClassifierConfig, provider ChatCompleter, logger *zap.Logger) *Classifier {
	return NewSeeded(cfg, provider, logger, time.Now().UnixNano())
}

// NewSeeded builds a classifier whose fallback randomness is deterministic
// for the given seed.
func NewSeeded(cfg config.ClassifierConfig, provider ChatCompleter, logger *zap.Logger, seed int64) *Classifier {
	return &Classifier{
		enabled:  cfg.Enabled,
		provider: provider,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Classify returns a classification for the given ticket text. It is total:
// disabled configuration, provider errors and malformed responses all resolve
// to the random fallback.
func (c *Classifier) Classify(ctx context.Context, subject, body string) domain.ClassificationResult {
	if !c.enabled || c.provider == nil {
		return c.randomClassification()
	}

	raw, err := c.provider.Complete(ctx, systemPrompt, fmt.Sprintf("Subject: %s\n\nBody: %s", subject, body))
	if err != nil {
		c.logger.Error("classification call failed",
			zap.String("subject", subject),
			zap.Error(err))
		return c.randomClassification()
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		c.logger.Warn("classifier returned invalid JSON",
			zap.String("subject", subject),
			zap.String("response", raw))
		return c.randomClassification()
	}
	categoryVal, ok := payload["category"]
	if !ok {
		c.logger.Warn("classifier response missing category",
			zap.String("subject", subject),
			zap.String("response", raw))
		return c.randomClassification()
	}

	category, _ := categoryVal.(string)
	if category == "" {
		category = "General"
	}
	explanation, _ := payload["explanation"].(string)
	if explanation == "" {
		explanation = "AI classification failed"
	}
	confidence := 0.5
	if num, isNum := payload["confidence"].(float64); isNum {
		confidence = num
	}
	if confidence < 0.0 {
		confidence = 0.0
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	return domain.ClassificationResult{
		Category:    category,
		Explanation: explanation,
		Confidence:  confidence,
	}
}

// randomClassification picks a uniform category with confidence in [0.50, 0.90].
func (c *Classifier) randomClassification() domain.ClassificationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.ClassificationResult{
		Category:    domain.Categories[c.rng.Intn(len(domain.Categories))],
		Explanation: fallbackExplanations[c.rng.Intn(len(fallbackExplanations))],
		Confidence:  float64(50+c.rng.Intn(41)) / 100,
	}
}
