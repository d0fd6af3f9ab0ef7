package runtime

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/hookflow/hookflow/engine/core"
	"github.com/hookflow/hookflow/pkg/config"
	"github.com/hookflow/hookflow/pkg/logger"
)

const (
	labelRuntime   = "hookflow.runtime"
	labelRuntimeID = "hookflow.runtime_id"
	labelImageHash = "hookflow.image_hash"
	labelLastUsed  = "hookflow.last_used"

	containerPort = "8000/tcp"
)

// ContainerBackend runs long-lived warm containers reachable by DNS name =
// container name, per spec.md §4.1.
type ContainerBackend struct {
	docker      *client.Client
	network     string
	idleTimeout time.Duration
	healthWait  time.Duration
	invokeWait  time.Duration
	httpClient  *http.Client
}

// NewContainerBackend dials the local Docker daemon via the environment
// (DOCKER_HOST et al.), mirroring the teacher pack's client construction.
func NewContainerBackend(cfg *config.Config) (*ContainerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &ContainerBackend{
		docker:      cli,
		network:     cfg.Runtime.ContainerNetwork,
		idleTimeout: cfg.Runtime.ContainerIdleTimeout,
		healthWait:  cfg.Runtime.HealthCheckTimeout,
		invokeWait:  cfg.Runtime.InvokeTimeout,
		httpClient:  &http.Client{Timeout: cfg.Runtime.InvokeTimeout},
	}, nil
}

func containerName(runtimeID core.ID) string {
	return "hookflow-runtime-" + runtimeID.String()
}

// CreateRuntime starts a warm container labelled for lifecycle tracking.
// Idempotent: if a container with this name already exists, it is reused.
func (b *ContainerBackend) CreateRuntime(
	ctx context.Context,
	runtimeID core.ID,
	cfg Config,
) (Status, []LogEntry, error) {
	log := logger.FromContext(ctx)
	name := containerName(runtimeID)
	existing, err := b.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return StatusFailed, nil, fmt.Errorf("list containers: %w", err)
	}
	if len(existing) > 0 {
		return StatusCompleted, []LogEntry{{Timestamp: time.Now().UTC(), Level: "info", Message: "reused existing container"}}, nil
	}

	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	containerCfg := &container.Config{
		Image: cfg.ImageRef,
		Env:   env,
		Labels: map[string]string{
			labelRuntime:   "true",
			labelRuntimeID: name,
			labelImageHash: cfg.ImageHash,
			labelLastUsed:  time.Now().UTC().Format(time.RFC3339),
		},
		ExposedPorts: nil,
	}
	hostCfg := &container.HostConfig{
		NetworkMode: container.NetworkMode(b.network),
	}
	resp, err := b.docker.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, name)
	if err != nil {
		return StatusFailed, []LogEntry{{Timestamp: time.Now().UTC(), Level: "error", Message: err.Error()}}, fmt.Errorf(
			"create container: %w",
			err,
		)
	}
	if err := b.docker.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return StatusFailed, nil, fmt.Errorf("start container: %w", err)
	}
	log.Info("container runtime created", "container_id", resp.ID, "image", cfg.ImageRef)
	return StatusInProgress, []LogEntry{{Timestamp: time.Now().UTC(), Level: "info", Message: "container started, awaiting health"}}, nil
}

// GetRuntimeStatus probes /health without mutating container state.
func (b *ContainerBackend) GetRuntimeStatus(ctx context.Context, runtimeID core.ID) (Status, []LogEntry, error) {
	info, err := b.docker.ContainerInspect(ctx, containerName(runtimeID))
	if err != nil {
		return StatusFailed, nil, fmt.Errorf("inspect container: %w", err)
	}
	if !info.State.Running {
		return StatusFailed, nil, nil
	}
	if b.probeHealth(ctx, containerName(runtimeID)) {
		return StatusCompleted, nil, nil
	}
	return StatusInProgress, nil, nil
}

func (b *ContainerBackend) probeHealth(ctx context.Context, name string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+name+":8000/health", nil)
	if err != nil {
		return false
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// InvokeTrigger waits for readiness (bounded by healthWait, default 30s)
// then POSTs the payload to /execute (bounded by invokeWait, default 60s).
func (b *ContainerBackend) InvokeTrigger(
	ctx context.Context,
	runtimeID core.ID,
	cfg Config,
	payload InvokePayload,
) error {
	name := containerName(runtimeID)
	if err := b.awaitHealthy(ctx, name); err != nil {
		return fmt.Errorf("runtime not healthy: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal invoke payload: %w", err)
	}
	invokeCtx, cancel := context.WithTimeout(ctx, b.invokeWait)
	defer cancel()
	req, err := http.NewRequestWithContext(invokeCtx, http.MethodPost, "http://"+name+":8000/execute", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke container: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("execute returned status %d", resp.StatusCode)
	}
	return nil
}

func (b *ContainerBackend) awaitHealthy(ctx context.Context, name string) error {
	deadline := time.Now().Add(b.healthWait)
	for time.Now().Before(deadline) {
		if b.probeHealth(ctx, name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
	return fmt.Errorf("health check timed out after %s", b.healthWait)
}

// TeardownUnusedRuntimes reaps containers idle beyond the configured
// timeout. Last activity = the latest log line whose text does not contain
// "/health" (health probes don't count), falling back to StartedAt
// (spec.md §4.1, §9 — the "deep log-line parsing" contract).
func (b *ContainerBackend) TeardownUnusedRuntimes(ctx context.Context) error {
	log := logger.FromContext(ctx)
	list, err := b.docker.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelRuntime+"=true")),
	})
	if err != nil {
		return fmt.Errorf("list runtime containers: %w", err)
	}
	for _, c := range list {
		if err := b.reapOne(ctx, c.ID); err != nil {
			log.Error("idle reap failed for container", "container_id", c.ID, "error", err)
		}
	}
	return nil
}

func (b *ContainerBackend) reapOne(ctx context.Context, containerID string) error {
	info, err := b.docker.ContainerInspect(ctx, containerID)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	if !info.State.Running {
		return b.docker.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
	}
	lastActivity, err := b.lastActivity(ctx, containerID, info.State.StartedAt)
	if err != nil {
		return fmt.Errorf("determine last activity: %w", err)
	}
	if time.Since(lastActivity) <= b.idleTimeout {
		return nil
	}
	return b.docker.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

func (b *ContainerBackend) lastActivity(ctx context.Context, containerID, startedAt string) (time.Time, error) {
	fallback, parseErr := time.Parse(time.RFC3339Nano, startedAt)
	if parseErr != nil {
		fallback = time.Now().UTC()
	}
	reader, err := b.docker.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       "500",
	})
	if err != nil {
		return fallback, nil
	}
	defer reader.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, reader); err != nil {
		return fallback, nil
	}
	latest := fallback
	for _, buf := range []*bytes.Buffer{&stdout, &stderr} {
		scanner := bufio.NewScanner(buf)
		for scanner.Scan() {
			ts, ok := lastActivityFromLine(scanner.Text())
			if ok && ts.After(latest) {
				latest = ts
			}
		}
	}
	return latest, nil
}

// lastActivityFromLine parses a Docker timestamped log line and reports
// whether it counts as activity (health probes do not).
func lastActivityFromLine(line string) (time.Time, bool) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, false
	}
	if strings.Contains(parts[1], "/health") {
		return time.Time{}, false
	}
	return ts, true
}
