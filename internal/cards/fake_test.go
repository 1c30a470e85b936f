package cards

import (
	"context"

	"cardscan-backend/internal/llm"
)

type fakeModel struct {
	reply string
	err   error
	calls []llm.VisionRequest
}

func (f *fakeModel) Describe(ctx context.Context, req llm.VisionRequest) (string, error) {
	_ = ctx
	f.calls = append(f.calls, req)
	return f.reply, f.err
}
