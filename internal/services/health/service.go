package health

// Service reports liveness plus which store and vision provider are wired.
type Service struct {
	store    string
	provider string
	model    string
}

// NewService constructs a new health service.
func NewService(store, provider, model string) *Service {
	return &Service{store: store, provider: provider, model: model}
}

// Status returns the health payload.
func (s *Service) Status() map[string]any {
	return map[string]any{
		"ok":          true,
		"objectStore": s.store,
		"llmProvider": s.provider,
		"llmModel":    s.model,
		"llmReady":    s.provider != "none",
	}
}
