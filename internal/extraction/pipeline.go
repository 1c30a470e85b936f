package extraction

import (
	"context"
	"errors"
	"fmt"

	"cardscan-backend/internal/cards"
	"cardscan-backend/internal/imaging"
	"cardscan-backend/internal/shared/metrics"
	"cardscan-backend/internal/shared/telemetry"
)

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Notice is an operator-visible message about one image.
type Notice struct {
	Level   string `json:"level"`
	File    string `json:"file"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// Result is the output of one pipeline run.
type Result struct {
	Records []cards.Record
	// Archive holds the decoded extraction reply per file.
	Archive map[string][]map[string]any
	// Replies holds the raw extraction reply text per file, including undecodable ones.
	Replies   map[string]string
	Notices   []Notice
	Processed int
	Skipped   int
	Failed    int
}

// Classifier decides whether an image is a business card.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (cards.Classification, string, error)
}

// Extractor returns the decoded contact entries of a card image.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]map[string]any, string, error)
}

// Loader returns the bytes of a named image.
type Loader func(ctx context.Context, name string) ([]byte, error)

// Pipeline classifies, extracts and normalizes images one at a time.
type Pipeline struct {
	Classifier   Classifier
	Extractor    Extractor
	Load         Loader
	MaxImageEdge int
	// Prepare defaults to imaging.Prepare.
	Prepare func(data []byte, maxEdge int) ([]byte, error)
	// LogFields are added to every pipeline log line.
	LogFields map[string]any
}

// Run processes images strictly in the given order. Per-image failures become
// notices and never abort the batch. Zero images returns ErrNoImages before
// any remote call.
func (p Pipeline) Run(ctx context.Context, images []string) (Result, error) {
	if len(images) == 0 {
		return Result{}, ErrNoImages
	}
	if p.Classifier == nil || p.Extractor == nil || p.Load == nil {
		return Result{}, errors.New("pipeline is missing a classifier, extractor or loader")
	}
	prepare := p.Prepare
	if prepare == nil {
		prepare = imaging.Prepare
	}

	res := Result{
		Records: []cards.Record{},
		Archive: map[string][]map[string]any{},
		Replies: map[string]string{},
		Notices: []Notice{},
	}

	for _, name := range images {
		res.Processed++
		metrics.IncCardsProcessed()

		data, err := p.Load(ctx, name)
		if err != nil {
			p.fail(&res, name, "Could not read "+name, err)
			continue
		}
		img, err := prepare(data, p.MaxImageEdge)
		if err != nil {
			p.fail(&res, name, "Could not decode image "+name, err)
			continue
		}

		verdict, reply, err := p.Classifier.Classify(ctx, img)
		if err != nil {
			p.fail(&res, name, "Error classifying "+name, err)
			continue
		}
		metrics.IncCardsClassified(verdict.String())
		telemetry.Info("card.classified", p.fields(map[string]any{"file": name, "result": verdict.String()}))

		switch verdict {
		case cards.NotCard:
			res.Skipped++
			res.Notices = append(res.Notices, Notice{Level: LevelInfo, File: name, Message: name + " is not a business card"})
			telemetry.Info("card.skipped", p.fields(map[string]any{"file": name, "reason": "not_card"}))
			continue
		case cards.Unrecognized:
			res.Skipped++
			res.Notices = append(res.Notices, Notice{
				Level:   LevelWarn,
				File:    name,
				Message: "Could not tell whether " + name + " is a business card",
				Cause:   fmt.Sprintf("unrecognized classifier reply %q", reply),
			})
			telemetry.Warn("card.skipped", p.fields(map[string]any{"file": name, "reason": "unrecognized", "reply": reply}))
			continue
		}

		entries, raw, err := p.Extractor.Extract(ctx, img)
		if raw != "" {
			res.Replies[name] = raw
		}
		if err != nil {
			p.fail(&res, name, "Error processing "+name, err)
			continue
		}
		res.Archive[name] = entries

		records := cards.NormalizeAll(entries)
		res.Records = append(res.Records, records...)
		metrics.AddRecordsExtracted(len(records))
		telemetry.Info("card.extracted", p.fields(map[string]any{"file": name, "records": len(records)}))
	}

	return res, nil
}

func (p Pipeline) fail(res *Result, name, message string, err error) {
	res.Failed++
	res.Notices = append(res.Notices, Notice{Level: LevelError, File: name, Message: message, Cause: err.Error()})
	metrics.IncCardsFailed()
	telemetry.Error("card.failed", p.fields(map[string]any{"file": name, "error": err}))
}

func (p Pipeline) fields(extra map[string]any) map[string]any {
	out := make(map[string]any, len(p.LogFields)+len(extra))
	for k, v := range p.LogFields {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
