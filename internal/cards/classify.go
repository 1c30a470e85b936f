package cards

import (
	"context"
	"fmt"
	"strings"

	"cardscan-backend/internal/llm"
)

// Classification is the outcome of asking the model whether an image is a business card.
type Classification int

const (
	Unrecognized Classification = iota
	IsCard
	NotCard
)

func (c Classification) String() string {
	switch c {
	case IsCard:
		return "card"
	case NotCard:
		return "not_card"
	default:
		return "unrecognized"
	}
}

// Classifier asks a vision model for a YES/NO card verdict.
type Classifier struct {
	model       llm.VisionModel
	instruction string
}

// NewClassifier returns a classifier using the built-in instruction.
func NewClassifier(model llm.VisionModel) *Classifier {
	return &Classifier{model: model, instruction: llm.ClassifyInstruction()}
}

// Classify sends image to the model and interprets its reply. The raw reply is
// returned alongside the verdict so callers can report unrecognized answers.
func (c *Classifier) Classify(ctx context.Context, image []byte) (Classification, string, error) {
	raw, err := c.model.Describe(ctx, llm.VisionRequest{
		Instruction: c.instruction,
		Image:       image,
		MimeType:    llm.DefaultMimeType,
	})
	if err != nil {
		return Unrecognized, "", fmt.Errorf("classify: %w", err)
	}
	return InterpretClassification(raw), raw, nil
}

// InterpretClassification maps a free-text reply onto a Classification.
// Only a bare YES or NO (any case, optionally quoted or followed by
// punctuation) is accepted; everything else is Unrecognized.
func InterpretClassification(reply string) Classification {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.Trim(cleaned, "\"'`*")
	cleaned = strings.TrimRight(cleaned, ".!;: \t\r\n")
	cleaned = strings.TrimSpace(cleaned)
	switch strings.ToUpper(cleaned) {
	case "YES":
		return IsCard
	case "NO":
		return NotCard
	default:
		return Unrecognized
	}
}
