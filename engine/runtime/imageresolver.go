package runtime

import (
	"context"
	"fmt"

	"github.com/docker/docker/client"
)

// DockerImageResolver resolves an image_hash (a tag or repo reference) to
// a digest-pinned reference by inspecting the locally cached image
// (spec.md §4.8 step 4). It does not pull; an image absent locally must
// already have been pulled by CreateRuntime.
type DockerImageResolver struct {
	docker *client.Client
}

// NewDockerImageResolver reuses an existing docker client.
func NewDockerImageResolver(docker *client.Client) *DockerImageResolver {
	return &DockerImageResolver{docker: docker}
}

func (r *DockerImageResolver) ResolveDigest(ctx context.Context, imageHash string) (string, error) {
	inspect, err := r.docker.ImageInspect(ctx, imageHash)
	if err != nil {
		return "", fmt.Errorf("runtime: inspect image %q: %w", imageHash, err)
	}
	if len(inspect.RepoDigests) > 0 {
		return inspect.RepoDigests[0], nil
	}
	return inspect.ID, nil
}
