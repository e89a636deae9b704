package browser

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"

	"github.com/ibeckermayer/postbot/internal/wait"
)

// DefaultImage is the headless Chrome image used by the docker engine.
const DefaultImage = "browserless/chrome:latest"

const devtoolsPort = "3000/tcp"

// Container is a running browser container.
type Container struct {
	ID       string
	Name     string
	Port     string
	Endpoint string
}

// ContainerLauncher runs browsers in local docker containers.
type ContainerLauncher struct {
	client *client.Client
	image  string
	prober *Prober
}

// NewContainerLauncher connects to the docker daemon from the environment.
func NewContainerLauncher(img string) (*ContainerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if img == "" {
		img = DefaultImage
	}
	return &ContainerLauncher{client: cli, image: img, prober: NewProber()}, nil
}

// EnsureImage pulls the browser image if it is not present locally.
func (l *ContainerLauncher) EnsureImage(ctx context.Context) error {
	images, err := l.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == l.image {
				return nil
			}
		}
	}

	slog.InfoContext(ctx, "pulling browser image", "image", l.image)
	reader, err := l.client.ImagePull(ctx, l.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Launch starts a container and waits until DevTools answers on the
// published port.
func (l *ContainerLauncher) Launch(ctx context.Context, ready wait.Budget) (*Container, error) {
	if err := l.EnsureImage(ctx); err != nil {
		return nil, err
	}

	name := "postbot-" + uuid.NewString()[:8]
	containerConfig := &container.Config{
		Image: l.image,
		Labels: map[string]string{
			"managed-by": "postbot",
		},
		Env: []string{
			"CONNECTION_TIMEOUT=-1",
			"MAX_CONCURRENT_SESSIONS=1",
			"PREBOOT_CHROME=true",
			"KEEP_ALIVE=true",
			"EXIT_ON_HEALTH_FAILURE=false",
		},
		ExposedPorts: nat.PortSet{
			devtoolsPort: struct{}{},
		},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			devtoolsPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "0"}},
		},
	}

	resp, err := l.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	if err := l.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	inspect, err := l.client.ContainerInspect(ctx, resp.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect container: %w", err)
	}
	bindings := inspect.NetworkSettings.Ports[devtoolsPort]
	if len(bindings) == 0 {
		_ = l.Stop(ctx, resp.ID)
		return nil, fmt.Errorf("container %s has no published devtools port", name)
	}
	port := bindings[0].HostPort

	endpoint := "ws://127.0.0.1:" + port
	if _, err := l.prober.WaitReady(ctx, endpoint, ready); err != nil {
		_ = l.Stop(ctx, resp.ID)
		return nil, fmt.Errorf("browser container failed to become ready: %w", err)
	}

	return &Container{ID: resp.ID, Name: name, Port: port, Endpoint: endpoint}, nil
}

// Stop stops and removes a container.
func (l *ContainerLauncher) Stop(ctx context.Context, id string) error {
	timeout := 10
	if err := l.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	if err := l.client.ContainerRemove(ctx, id, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Close releases the docker client.
func (l *ContainerLauncher) Close() error {
	return l.client.Close()
}
