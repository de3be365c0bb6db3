package docker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"

	"github.com/eightyone/botdock/internal/core/domain"
)

// Adapter implements ports.ContainerService using Docker SDK
type Adapter struct {
	cli *client.Client
	log zerolog.Logger
}

// NewAdapter creates a new Docker adapter instance
func NewAdapter(log zerolog.Logger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, log: log}, nil
}

// ListContainers returns running containers with deployment details.
func (a *Adapter) ListContainers(ctx context.Context) ([]domain.Container, error) {
	containers, err := a.cli.ContainerList(ctx, types.ContainerListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	var result []domain.Container
	for _, c := range containers {
		// Use the first name if available, remove slash
		name := ""
		if len(c.Names) > 0 {
			name = c.Names[0][1:]
		}

		hostPort := 0
		for _, p := range c.Ports {
			if p.PublicPort > 0 {
				hostPort = int(p.PublicPort)
				break
			}
		}

		ip := ""
		if c.NetworkSettings != nil {
			for _, netw := range c.NetworkSettings.Networks {
				if netw.IPAddress != "" {
					ip = netw.IPAddress
					break
				}
			}
		}

		result = append(result, domain.Container{
			ID:        c.ID[:12], // Short ID
			Name:      name,
			Image:     c.Image,
			Status:    c.Status,
			State:     c.State,
			IPAddress: ip,
			Port:      hostPort,
		})
	}
	return result, nil
}

// StartContainer creates and starts a container with the application port
// published on all interfaces and PORT injected into the environment.
func (a *Adapter) StartContainer(ctx context.Context, spec domain.LaunchSpec) (string, error) {
	if spec.Image == "" {
		return "", fmt.Errorf("launch spec requires an image")
	}
	if spec.Port <= 0 {
		spec.Port = domain.DefaultPort
	}
	if spec.HostPort <= 0 {
		spec.HostPort = spec.Port
	}

	if err := a.ensureImage(ctx, spec.Image); err != nil {
		return "", err
	}

	portSet, portMap, err := publishPort(spec.Port, spec.HostPort)
	if err != nil {
		return "", err
	}

	resp, err := a.cli.ContainerCreate(ctx, &container.Config{
		Image:        spec.Image,
		Env:          launchEnv(spec),
		ExposedPorts: portSet,
	}, &container.HostConfig{
		PortBindings: portMap,
	}, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := a.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	return resp.ID, nil
}

// WaitReady polls the published port until the application answers HTTP.
// If the container exits first (entry point import failure, port already
// bound inside), the exit code and recent logs become the error: a failed
// start leaves no listening socket behind.
func (a *Adapter) WaitReady(ctx context.Context, id string, hostPort int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	probe := &http.Client{Timeout: 2 * time.Second}
	url := fmt.Sprintf("http://127.0.0.1:%d/", hostPort)

	for {
		inspect, err := a.cli.ContainerInspect(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to inspect container: %w", err)
		}
		if inspect.State != nil && !inspect.State.Running {
			return fmt.Errorf("container exited with code %d before binding port %d: %s",
				inspect.State.ExitCode, hostPort, a.tailLogs(ctx, id))
		}

		resp, err := probe.Get(url)
		if err == nil {
			resp.Body.Close()
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("application did not answer on port %d within %s", hostPort, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// StopContainer stops a running container
func (a *Adapter) StopContainer(ctx context.Context, id string) error {
	// Timeout can be configurable, but keeping it simple for now
	timeout := 10 * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return a.cli.ContainerStop(ctx, id, container.StopOptions{})
}

// GetContainerLogs returns a stream of container logs
func (a *Adapter) GetContainerLogs(ctx context.Context, id string) (io.ReadCloser, error) {
	options := types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     false, // Can be true for streaming
		Timestamps: true,
	}
	return a.cli.ContainerLogs(ctx, id, options)
}

// ensureImage pulls the image only when the engine does not have it yet;
// locally built images must not trigger a registry pull.
func (a *Adapter) ensureImage(ctx context.Context, image string) error {
	_, _, err := a.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("failed to inspect image: %w", err)
	}

	a.log.Info().Str("image", image).Msg("pulling image")
	reader, err := a.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	io.Copy(io.Discard, reader)
	return nil
}

func (a *Adapter) tailLogs(ctx context.Context, id string) string {
	rc, err := a.cli.ContainerLogs(ctx, id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "20",
	})
	if err != nil {
		return ""
	}
	defer rc.Close()
	b, _ := io.ReadAll(io.LimitReader(rc, 4096))
	return string(b)
}

// launchEnv builds the container environment. PORT always carries the
// authoritative port; extra variables are sorted for a stable create config.
func launchEnv(spec domain.LaunchSpec) []string {
	env := []string{"PORT=" + strconv.Itoa(spec.Port)}
	keys := make([]string, 0, len(spec.Env))
	for k := range spec.Env {
		if k == "PORT" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+spec.Env[k])
	}
	return env
}

// publishPort maps the container port to hostPort on all interfaces.
func publishPort(port, hostPort int) (nat.PortSet, nat.PortMap, error) {
	p, err := nat.NewPort("tcp", strconv.Itoa(port))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid port %d: %w", port, err)
	}
	set := nat.PortSet{p: struct{}{}}
	bindings := nat.PortMap{p: []nat.PortBinding{{
		HostIP:   "0.0.0.0",
		HostPort: strconv.Itoa(hostPort),
	}}}
	return set, bindings, nil
}
