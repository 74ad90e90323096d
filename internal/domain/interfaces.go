package domain

import (
	"context"
)

// TextGenerator is the capability every backend provides.
// Implementations shared through the registry must be safe for concurrent use.
type TextGenerator interface {
	Kind() ProviderKind

	// Generate returns the generated text. A backend that cannot produce
	// output returns an error rather than an empty string.
	Generate(ctx context.Context, prompt Prompt) (string, error)
}
