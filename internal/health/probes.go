package health

import (
	"context"
	"log/slog"
	"net"

	"github.com/docker/docker/client"
)

// TCPProbe checks that a TCP endpoint accepts connections. Used for the
// generator's debug port, which only listens while the desktop app is up.
func TCPProbe(name, addr string) Probe {
	var dialer net.Dialer
	return Probe{
		Name: name,
		Check: func(ctx context.Context) bool {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return false
			}
			_ = conn.Close()
			return true
		},
	}
}

// DockerProbe checks that a named container exists and is running.
func DockerProbe(name, containerName string, cli *client.Client, logger *slog.Logger) Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return Probe{
		Name: name,
		Check: func(ctx context.Context) bool {
			inspect, err := cli.ContainerInspect(ctx, containerName)
			if err != nil {
				logger.Debug("[HEALTH] Container inspect failed", "container", containerName, "error", err)
				return false
			}
			return inspect.State != nil && inspect.State.Running
		},
	}
}

// FuncProbe wraps an arbitrary boolean check, such as an HTTP health client.
func FuncProbe(name string, check func(ctx context.Context) bool) Probe {
	return Probe{Name: name, Check: check}
}
