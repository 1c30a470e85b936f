package health

import "testing"

func TestStatus(t *testing.T) {
	st := NewService("memory", "openai", "gpt-4o-mini").Status()
	if st["ok"] != true || st["objectStore"] != "memory" || st["llmReady"] != true {
		t.Fatalf("unexpected status %v", st)
	}
	if NewService("local", "none", "").Status()["llmReady"] != false {
		t.Fatalf("expected llmReady=false without a provider")
	}
}
