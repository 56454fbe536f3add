package interfaces

import "context"

// Oracle turns a rendered prompt into the provider's raw text reply.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
