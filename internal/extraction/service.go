package extraction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardscan-backend/internal/cards"
	"cardscan-backend/internal/shared/metrics"
	"cardscan-backend/internal/shared/storage/object"
	"cardscan-backend/internal/shared/telemetry"
	"cardscan-backend/internal/shared/util"
)

// RunSummary is what one extraction request returns.
type RunSummary struct {
	RunID     string         `json:"runId"`
	Records   []cards.Record `json:"records"`
	Notices   []Notice       `json:"notices"`
	Processed int            `json:"processed"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
}

// Service runs the card pipeline over a session's stored images and keeps its results.
type Service struct {
	Store        object.ImageStore
	Sessions     *Sessions
	Classifier   Classifier
	Extractor    Extractor
	MaxImageEdge int
	// Prepare overrides image preparation; nil uses imaging.Prepare.
	Prepare func(data []byte, maxEdge int) ([]byte, error)
}

// Images returns the names of the session's stored images in listing order.
func (s *Service) Images(ctx context.Context, session string) ([]string, error) {
	objects, err := s.Store.List(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		if util.IsImageName(obj.Name) {
			names = append(names, obj.Name)
		}
	}
	return names, nil
}

// Extract runs the pipeline over every stored image of the session and makes
// the outcome its result set.
func (s *Service) Extract(ctx context.Context, session string) (RunSummary, error) {
	if err := s.Sessions.Begin(session); err != nil {
		return RunSummary{}, err
	}
	committed := false
	defer func() {
		if !committed {
			s.Sessions.End(session)
		}
	}()

	images, err := s.Images(ctx, session)
	if err != nil {
		return RunSummary{}, err
	}
	if len(images) == 0 {
		return RunSummary{}, ErrNoImages
	}

	runID := uuid.NewString()
	logFields := map[string]any{"run_id": runID, "session_id": session}
	telemetry.Info("extraction.start", map[string]any{"run_id": runID, "session_id": session, "images": len(images)})

	// A run is not cancelled mid-batch when the caller goes away.
	runCtx := context.WithoutCancel(ctx)
	start := time.Now()
	pipeline := Pipeline{
		Classifier:   s.Classifier,
		Extractor:    s.Extractor,
		MaxImageEdge: s.MaxImageEdge,
		Prepare:      s.Prepare,
		LogFields:    logFields,
		Load: func(ctx context.Context, name string) ([]byte, error) {
			return object.ReadAll(ctx, s.Store, session, name)
		},
	}
	res, err := pipeline.Run(runCtx, images)
	if err != nil {
		return RunSummary{}, err
	}
	elapsed := time.Since(start)
	metrics.ObserveRunDurationMs(float64(elapsed.Milliseconds()))

	s.Sessions.Commit(session, runID, res)
	committed = true

	telemetry.Info("extraction.complete", map[string]any{
		"run_id":      runID,
		"session_id":  session,
		"processed":   res.Processed,
		"skipped":     res.Skipped,
		"failed":      res.Failed,
		"records":     len(res.Records),
		"duration_ms": elapsed.Milliseconds(),
	})

	return RunSummary{
		RunID:     runID,
		Records:   res.Records,
		Notices:   res.Notices,
		Processed: res.Processed,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
	}, nil
}

// Results returns the session's current result set.
func (s *Service) Results(session string) SessionResultSet {
	return s.Sessions.Get(session)
}

// ReplaceRecords stores an edited grid for the session.
func (s *Service) ReplaceRecords(session string, records []cards.Record) SessionResultSet {
	return s.Sessions.ReplaceRecords(session, records)
}

// Clear deletes every stored file of the session and drops its results. It
// holds the run guard throughout, so no extraction can start in between. If the
// store fails the results are kept.
func (s *Service) Clear(ctx context.Context, session string) (int, error) {
	if err := s.Sessions.Begin(session); err != nil {
		return 0, err
	}
	n, err := s.Store.Clear(ctx, session)
	if err != nil {
		s.Sessions.End(session)
		return n, fmt.Errorf("clear images: %w", err)
	}
	s.Sessions.Reset(session)
	telemetry.Info("session.cleared", map[string]any{"session_id": session, "files": n})
	return n, nil
}
