package generation

import "context"

// Generator produces free-form text from a prompt.
// This interface serves as a boundary between agent capabilities and
// external AI/LLM services.
type Generator interface {
	// GenerateText sends prompt to the model under the given system
	// instruction and returns the generated text. Failures are not retried.
	GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error)
}
