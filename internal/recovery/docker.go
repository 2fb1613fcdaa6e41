package recovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

const restartStopTimeoutSecs = 10

// DockerRestartExecutor recovers a component by restarting its container.
type DockerRestartExecutor struct {
	cli           *client.Client
	containerName string
	logger        *slog.Logger
}

var _ Executor = (*DockerRestartExecutor)(nil)

func NewDockerRestartExecutor(cli *client.Client, containerName string, logger *slog.Logger) *DockerRestartExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerRestartExecutor{cli: cli, containerName: containerName, logger: logger}
}

func (e *DockerRestartExecutor) Recover(ctx context.Context) (string, error) {
	timeout := restartStopTimeoutSecs
	err := e.cli.ContainerRestart(ctx, e.containerName, container.StopOptions{Timeout: &timeout})
	if err != nil {
		if errdefs.IsNotFound(err) {
			return "", fmt.Errorf("container %s not found: %w", e.containerName, err)
		}
		return "", fmt.Errorf("restart container %s: %w", e.containerName, err)
	}
	e.logger.Info("[RECOVERY] Container restarted", "container", e.containerName)
	return fmt.Sprintf("container %s restarted", e.containerName), nil
}
