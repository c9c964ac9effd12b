// Package docker wraps the Docker Engine SDK to build the agent image from a
// rendered recipe.
package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/agent2000/agent2000/internal/logging"
	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"golang.org/x/term"
)

// ErrDaemonUnavailable is returned when no Docker daemon can be reached.
var ErrDaemonUnavailable = errors.New("docker daemon unavailable")

// defaultPingTimeout bounds a single ping attempt.
const defaultPingTimeout = 5 * time.Second

// Client wraps the Docker SDK client.
type Client struct {
	inner  *client.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient connects to DOCKER_HOST when set, otherwise to the first
// platform default socket that exists.
func NewClient(opts ...Option) (*Client, error) {
	if host := os.Getenv("DOCKER_HOST"); host != "" {
		return New(host, opts...)
	}
	host, err := detectDockerHost()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDaemonUnavailable, err)
	}
	return New(host, opts...)
}

// New creates a client for an explicit daemon address such as
// unix:///var/run/docker.sock or tcp://127.0.0.1:2375.
func New(host string, opts ...Option) (*Client, error) {
	inner, err := client.NewClientWithOpts(
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client for host %q: %w", host, err)
	}
	c := &Client{inner: inner, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func detectDockerHost() (string, error) {
	switch runtime.GOOS {
	case "windows":
		return "npipe:////./pipe/docker_engine", nil
	case "darwin":
		paths := []string{"/var/run/docker.sock"}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, home+"/.docker/run/docker.sock")
		}
		return detectUnixSocket(paths)
	default:
		return detectUnixSocket([]string{"/var/run/docker.sock"})
	}
}

func detectUnixSocket(paths []string) (string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return "unix://" + p, nil
		}
	}
	return "", fmt.Errorf("docker socket not found at any of %v", paths)
}

// Ping checks that the daemon answers, retrying a few times so a daemon that
// is still starting does not fail the command.
func (c *Client) Ping(ctx context.Context) error {
	err := retry.Do(func() error {
		pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
		defer cancel()
		_, err := c.inner.Ping(pingCtx)
		return err
	},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("docker ping failed, retrying", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDaemonUnavailable, err)
	}
	return nil
}

// BuildOptions controls an image build.
type BuildOptions struct {
	Tags      []string
	NoCache   bool
	Pull      bool
	BuildArgs map[string]string
	Labels    map[string]string
}

// Build sends buildContext (a tar stream containing a Dockerfile at its root)
// to the daemon and streams progress to out. It returns the built image ID.
// Errors reported inside the stream, such as a missing requirements.txt or
// an unreachable package index, are returned as errors.
func (c *Client) Build(ctx context.Context, buildContext io.Reader, opts BuildOptions, out io.Writer) (string, error) {
	args := make(map[string]*string, len(opts.BuildArgs))
	for k, v := range opts.BuildArgs {
		args[k] = &v
	}
	resp, err := c.inner.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        opts.Tags,
		Dockerfile:  "Dockerfile",
		NoCache:     opts.NoCache,
		PullParent:  opts.Pull,
		Remove:      true,
		ForceRemove: true,
		BuildArgs:   args,
		Labels:      opts.Labels,
	})
	if err != nil {
		return "", fmt.Errorf("failed to start image build: %w", err)
	}
	defer resp.Body.Close()

	if out == nil {
		out = io.Discard
	}
	fd, isTerm := terminalFd(out)

	var imageID string
	aux := func(msg jsonmessage.JSONMessage) {
		var result build.Result
		if msg.Aux == nil {
			return
		}
		if err := json.Unmarshal(*msg.Aux, &result); err == nil && result.ID != "" {
			imageID = result.ID
		}
	}
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, out, fd, isTerm, aux); err != nil {
		return "", fmt.Errorf("image build failed: %w", err)
	}
	c.logger.Info("image built", "id", imageID, "tags", opts.Tags)
	return imageID, nil
}

func terminalFd(w io.Writer) (uintptr, bool) {
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		return fd, term.IsTerminal(int(fd))
	}
	return 0, false
}

// Close releases the client's resources.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}
