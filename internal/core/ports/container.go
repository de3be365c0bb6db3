package ports

import (
	"context"
	"io"
	"time"

	"github.com/eightyone/botdock/internal/core/domain"
)

// ContainerService defines the core operations for running application
// containers. This interface allows us to switch between Docker, Podman, or
// Kubernetes without changing the business logic.
type ContainerService interface {
	ListContainers(ctx context.Context) ([]domain.Container, error)
	StartContainer(ctx context.Context, spec domain.LaunchSpec) (string, error)
	// WaitReady blocks until the started application answers HTTP on its
	// published port, or fails when the container exits first (entry point
	// import failure, port already bound).
	WaitReady(ctx context.Context, id string, hostPort int, timeout time.Duration) error
	StopContainer(ctx context.Context, id string) error
	GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error)
}
