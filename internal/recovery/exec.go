package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// CommandExecutor recovers a component by running an external command,
// typically a restart script or service manager invocation.
type CommandExecutor struct {
	command string
	args    []string
	logger  *slog.Logger
}

var _ Executor = (*CommandExecutor)(nil)

func NewCommandExecutor(command string, args []string, logger *slog.Logger) *CommandExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandExecutor{command: command, args: args, logger: logger}
}

func (e *CommandExecutor) Recover(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, e.command, e.args...)
	out, err := cmd.CombinedOutput()
	diag := strings.TrimSpace(string(out))
	if err != nil {
		return diag, fmt.Errorf("run %s: %w", e.command, err)
	}
	e.logger.Debug("[RECOVERY] Command completed", "command", e.command, "output", diag)
	return diag, nil
}
