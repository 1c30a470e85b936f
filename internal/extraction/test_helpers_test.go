package extraction

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"cardscan-backend/internal/cards"
	"cardscan-backend/internal/llm"
	"cardscan-backend/internal/shared/storage/object/memory"
)

type scriptedReply struct {
	classify string
	extract  string
	err      error
}

// scriptedModel answers per image, keyed by the image bytes.
type scriptedModel struct {
	mu           sync.Mutex
	replies      map[string]scriptedReply
	classifyHits int
	extractHits  int
}

func (m *scriptedModel) Describe(ctx context.Context, req llm.VisionRequest) (string, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.replies[string(req.Image)]
	if !ok {
		return "", errors.New("unexpected image")
	}
	if req.Instruction == llm.ClassifyInstruction() {
		m.classifyHits++
		if r.err != nil {
			return "", r.err
		}
		return r.classify, nil
	}
	m.extractHits++
	return r.extract, nil
}

func identity(data []byte, maxEdge int) ([]byte, error) {
	_ = maxEdge
	return data, nil
}

func newTestService(t *testing.T, model *scriptedModel, files map[string]string) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	for name, content := range files {
		if _, err := store.Save(context.Background(), "s1", name, bytes.NewReader([]byte(content))); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
	}
	return &Service{
		Store:      store,
		Sessions:   NewSessions(),
		Classifier: cards.NewClassifier(model),
		Extractor:  cards.NewExtractor(model),
		Prepare:    identity,
	}, store
}
