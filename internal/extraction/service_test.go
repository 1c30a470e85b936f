package extraction

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"cardscan-backend/internal/cards"
	"cardscan-backend/internal/shared/storage/object"
)

func TestServiceNoImages(t *testing.T) {
	model := &scriptedModel{}
	svc, _ := newTestService(t, model, map[string]string{"notes.pdf": "%PDF", "cv.docx": "PK"})

	_, err := svc.Extract(context.Background(), "s1")
	if !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
	if model.classifyHits != 0 {
		t.Fatalf("expected no remote calls")
	}
	if err := svc.Sessions.Begin("s1"); err != nil {
		t.Fatalf("run lock not released: %v", err)
	}
}

func TestServiceExtractReplacesPreviousRun(t *testing.T) {
	model := &scriptedModel{replies: map[string]scriptedReply{
		"a": {classify: "YES", extract: `[{"Person name":"A"}]`},
		"b": {classify: "NO"},
	}}
	svc, store := newTestService(t, model, map[string]string{"a.jpg": "a", "b.png": "b", "c.pdf": "c"})

	summary, err := svc.Extract(context.Background(), "s1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if summary.RunID == "" || summary.Processed != 2 || len(summary.Records) != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if _, err := store.Save(context.Background(), "s1", "d.jpeg", bytes.NewReader([]byte("a"))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := svc.Extract(context.Background(), "s1"); err != nil {
		t.Fatalf("second extract: %v", err)
	}

	set := svc.Results("s1")
	if len(set.Records) != 2 {
		t.Fatalf("expected one record per card after rerun, got %d: %+v", len(set.Records), set.Records)
	}
	if len(set.Notices) != 1 || set.Notices[0].File != "b.png" {
		t.Fatalf("expected notices of the last run only, got %+v", set.Notices)
	}
	if len(set.Archive) != 2 {
		t.Fatalf("expected archive for a.jpg and d.jpeg, got %v", set.Archive)
	}
	if other := svc.Results("s2"); len(other.Records) != 0 {
		t.Fatalf("sessions must be isolated")
	}
}

func TestServiceRerunDoesNotDuplicateRecords(t *testing.T) {
	model := &scriptedModel{replies: map[string]scriptedReply{
		"a": {classify: "YES", extract: `[{"Person name":"A","Company name":"Acme"}]`},
	}}
	svc, _ := newTestService(t, model, map[string]string{"a.jpg": "a"})

	for i := 0; i < 2; i++ {
		if _, err := svc.Extract(context.Background(), "s1"); err != nil {
			t.Fatalf("extract %d: %v", i, err)
		}
	}

	set := svc.Results("s1")
	if len(set.Records) != 1 || set.Records[0].CompanyName != "Acme" {
		t.Fatalf("expected a single Acme row, got %+v", set.Records)
	}
	if len(set.Archive) != 1 || len(set.Replies) != 1 {
		t.Fatalf("expected archive and replies for a.jpg only, got %v / %v", set.Archive, set.Replies)
	}
}

func TestServiceRerunDropsRemovedCards(t *testing.T) {
	model := &scriptedModel{replies: map[string]scriptedReply{
		"a": {classify: "YES", extract: `[{"Person name":"A"}]`},
		"b": {classify: "YES", extract: `[{"Person name":"B"}]`},
	}}
	svc, _ := newTestService(t, model, map[string]string{"a.jpg": "a", "b.jpg": "b"})

	if _, err := svc.Extract(context.Background(), "s1"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	svc.ReplaceRecords("s1", []cards.Record{{PersonName: "edited"}})
	model.replies["b"] = scriptedReply{classify: "NO"}
	if _, err := svc.Extract(context.Background(), "s1"); err != nil {
		t.Fatalf("second extract: %v", err)
	}

	set := svc.Results("s1")
	if len(set.Records) != 1 || set.Records[0].PersonName != "A" {
		t.Fatalf("expected only the current run's rows, got %+v", set.Records)
	}
	if _, ok := set.Archive["b.jpg"]; ok {
		t.Fatalf("expected b.jpg dropped from the archive, got %v", set.Archive)
	}
}

func TestServiceRejectsConcurrentRun(t *testing.T) {
	model := &scriptedModel{replies: map[string]scriptedReply{"a": {classify: "NO"}}}
	svc, _ := newTestService(t, model, map[string]string{"a.jpg": "a"})

	if err := svc.Sessions.Begin("s1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := svc.Extract(context.Background(), "s1"); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if _, err := svc.Clear(context.Background(), "s1"); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected clear to be refused while running, got %v", err)
	}
	svc.Sessions.End("s1")
	if _, err := svc.Extract(context.Background(), "s1"); err != nil {
		t.Fatalf("extract after end: %v", err)
	}
}

func TestServiceClearRemovesFilesAndResults(t *testing.T) {
	model := &scriptedModel{replies: map[string]scriptedReply{"a": {classify: "YES", extract: `[{"Person name":"A"}]`}}}
	svc, store := newTestService(t, model, map[string]string{"a.jpg": "a", "b.pdf": "b"})

	if _, err := svc.Extract(context.Background(), "s1"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	n, err := svc.Clear(context.Background(), "s1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 files cleared, got %d", n)
	}
	objects, err := store.List(context.Background(), "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(objects) != 0 {
		t.Fatalf("expected empty listing, got %v", objects)
	}
	if set := svc.Results("s1"); len(set.Records) != 0 || len(set.Archive) != 0 {
		t.Fatalf("expected cleared results, got %+v", set)
	}
}

// gatedStore blocks Clear until release is closed, or fails it when clearErr is set.
type gatedStore struct {
	object.ImageStore
	entered  chan struct{}
	release  chan struct{}
	clearErr error
}

func (g *gatedStore) Clear(ctx context.Context, session string) (int, error) {
	if g.clearErr != nil {
		return 0, g.clearErr
	}
	close(g.entered)
	<-g.release
	return g.ImageStore.Clear(ctx, session)
}

func TestServiceClearHoldsRunGuard(t *testing.T) {
	model := &scriptedModel{replies: map[string]scriptedReply{"a": {classify: "YES", extract: `[{"Person name":"A"}]`}}}
	svc, store := newTestService(t, model, map[string]string{"a.jpg": "a"})
	if _, err := svc.Extract(context.Background(), "s1"); err != nil {
		t.Fatalf("extract: %v", err)
	}

	gated := &gatedStore{ImageStore: store, entered: make(chan struct{}), release: make(chan struct{})}
	svc.Store = gated

	done := make(chan error, 1)
	go func() {
		_, err := svc.Clear(context.Background(), "s1")
		done <- err
	}()
	<-gated.entered

	if _, err := svc.Extract(context.Background(), "s1"); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected extraction refused during clear, got %v", err)
	}
	close(gated.release)
	if err := <-done; err != nil {
		t.Fatalf("clear: %v", err)
	}

	if set := svc.Results("s1"); len(set.Records) != 0 {
		t.Fatalf("expected cleared results, got %+v", set.Records)
	}
	if err := svc.Sessions.Begin("s1"); err != nil {
		t.Fatalf("run guard not released after clear: %v", err)
	}
}

func TestServiceClearStoreFailureKeepsResults(t *testing.T) {
	model := &scriptedModel{replies: map[string]scriptedReply{"a": {classify: "YES", extract: `[{"Person name":"A"}]`}}}
	svc, store := newTestService(t, model, map[string]string{"a.jpg": "a"})
	if _, err := svc.Extract(context.Background(), "s1"); err != nil {
		t.Fatalf("extract: %v", err)
	}

	svc.Store = &gatedStore{ImageStore: store, clearErr: errors.New("disk gone")}
	if _, err := svc.Clear(context.Background(), "s1"); err == nil {
		t.Fatalf("expected clear error")
	}
	if set := svc.Results("s1"); len(set.Records) != 1 {
		t.Fatalf("expected results kept when files remain, got %+v", set.Records)
	}
	if err := svc.Sessions.Begin("s1"); err != nil {
		t.Fatalf("run guard not released after failed clear: %v", err)
	}
}

func TestServiceReplaceRecords(t *testing.T) {
	svc, _ := newTestService(t, &scriptedModel{}, nil)
	edited := []cards.Record{{PersonName: "Edited"}, {Email: "x@y.z"}}

	set := svc.ReplaceRecords("s1", edited)
	if len(set.Records) != 2 || set.Records[0].PersonName != "Edited" {
		t.Fatalf("unexpected records %+v", set.Records)
	}
	edited[0].PersonName = "mutated"
	if svc.Results("s1").Records[0].PersonName != "Edited" {
		t.Fatalf("stored records must not alias caller slice")
	}
}
