package generation

import "context"

// Generator produces recipe text from a free-form user request.
// Implementations must be side-effect free with respect to accounting state:
// a failed generation costs nothing.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
