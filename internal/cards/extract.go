package cards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cardscan-backend/internal/llm"
)

// ErrMalformedReply is wrapped by every DecodeError.
var ErrMalformedReply = errors.New("malformed extraction reply")

// DecodeError reports an extraction reply that could not be decoded into entries.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return ErrMalformedReply.Error()
	}
	return fmt.Sprintf("%s: %v", ErrMalformedReply, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrMalformedReply}
	}
	return []error{ErrMalformedReply, e.Err}
}

// Extractor asks a vision model for the contact fields printed on a card.
type Extractor struct {
	model       llm.VisionModel
	instruction string
}

// NewExtractor returns an extractor using the built-in instruction.
func NewExtractor(model llm.VisionModel) *Extractor {
	return &Extractor{model: model, instruction: llm.ExtractInstruction()}
}

// Extract returns the decoded entries and the raw reply. A reply that does not
// decode yields a *DecodeError; the raw reply is still returned.
func (e *Extractor) Extract(ctx context.Context, image []byte) ([]map[string]any, string, error) {
	raw, err := e.model.Describe(ctx, llm.VisionRequest{
		Instruction: e.instruction,
		Image:       image,
		MimeType:    llm.DefaultMimeType,
	})
	if err != nil {
		return nil, "", fmt.Errorf("extract: %w", err)
	}
	entries, err := ParseReply(raw)
	if err != nil {
		return nil, raw, err
	}
	return entries, raw, nil
}

// ParseReply decodes a model reply into a list of field mappings. It tolerates
// markdown fences, prose around the JSON, a single object instead of a list and
// null values. A top-level null decodes to an empty list.
func ParseReply(raw string) ([]map[string]any, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return nil, &DecodeError{Raw: raw, Err: errors.New("empty reply")}
	}
	if strings.EqualFold(text, "null") {
		return []map[string]any{}, nil
	}

	// Prose around the payload may itself contain brackets, so every opening
	// bracket is tried in turn and the first decodable list or object wins.
	var firstErr error
	for offset := 0; offset < len(text); {
		i := strings.IndexAny(text[offset:], "[{")
		if i < 0 {
			break
		}
		start := offset + i
		offset = start + 1

		entries, err := decodeEntries(text[start:])
		if err == nil {
			return entries, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no JSON list or object found")
	}
	return nil, &DecodeError{Raw: raw, Err: firstErr}
}

// decodeEntries decodes the first JSON value of text, ignoring whatever follows it.
func decodeEntries(text string) ([]map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, err
	}

	switch v := decoded.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		entries := make([]map[string]any, 0, len(v))
		for i, item := range v {
			switch entry := item.(type) {
			case nil:
				continue
			case map[string]any:
				entries = append(entries, entry)
			default:
				return nil, fmt.Errorf("entry %d is %T, want object", i, item)
			}
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unexpected top-level %T", decoded)
	}
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		// drop the language tag, e.g. ```json
		if !strings.ContainsAny(text[:nl], "[{") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
