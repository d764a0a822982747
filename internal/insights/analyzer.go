package insights

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"marrowai-server/internal/models"
)

// ErrNoText is returned when there is nothing to analyse.
var ErrNoText = errors.New("no text provided")

// Generator produces a text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const promptTemplate = `Analyze the following medical report text and return ONLY a JSON object with the following structure:
{
  "riskScore": number (0-100),
  "riskLevel": "low" | "medium" | "high",
  "wbc": number (×10³/μL),
  "hemoglobin": number (g/dL),
  "platelets": number (×10³/μL),
  "recommendations": string[]
}
Text: %s`

// BuildPrompt returns the extraction prompt for text.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// Analyzer extracts AIInsights from report text.
type Analyzer struct {
	gen    Generator
	logger *zap.Logger
}

// NewAnalyzer returns an Analyzer backed by gen.
func NewAnalyzer(gen Generator, logger *zap.Logger) *Analyzer {
	return &Analyzer{gen: gen, logger: logger}
}

// Analyze sends text to the model once and parses the reply. Generator
// failures are wrapped; malformed replies return *ParseError.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*models.AIInsights, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoText
	}

	raw, err := a.gen.Generate(ctx, BuildPrompt(text))
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}

	result, err := Parse(raw)
	if err != nil {
		a.logger.Warn("Model returned unusable insights",
			zap.Error(err),
			zap.String("raw_prefix", truncate(raw, 200)),
		)
		return nil, err
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
