package recovery

import (
	"context"
	"fmt"
)

// Initializer re-establishes the generator API's downstream connection.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// InitializeExecutor recovers the bridge connection by asking the generator
// API to reinitialize.
type InitializeExecutor struct {
	client Initializer
}

var _ Executor = (*InitializeExecutor)(nil)

func NewInitializeExecutor(client Initializer) *InitializeExecutor {
	return &InitializeExecutor{client: client}
}

func (e *InitializeExecutor) Recover(ctx context.Context) (string, error) {
	if err := e.client.Initialize(ctx); err != nil {
		return "", fmt.Errorf("reinitialize generator connection: %w", err)
	}
	return "generator connection reinitialized", nil
}
