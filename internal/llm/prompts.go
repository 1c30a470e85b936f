package llm

import (
	_ "embed"
	"strings"
)

var (
	//go:embed prompts/classify.txt
	classifyPrompt string
	//go:embed prompts/extract.txt
	extractPrompt string
)

// ClassifyInstruction is the fixed instruction sent with every classification request.
func ClassifyInstruction() string {
	return strings.TrimSpace(classifyPrompt)
}

// ExtractInstruction is the fixed instruction sent with every extraction request.
func ExtractInstruction() string {
	return strings.TrimSpace(extractPrompt)
}
