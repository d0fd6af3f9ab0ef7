package execution

import "context"

// ImageResolver resolves a content-addressed image_hash to a
// digest-pinned image reference (spec.md §4.8 step 4). The concrete
// implementation talks to the runtime's image registry; tests and
// the function/pod backends can use a stub that echoes the hash back.
type ImageResolver interface {
	ResolveDigest(ctx context.Context, imageHash string) (digestRef string, err error)
}

// StaticImageResolver resolves every hash to itself. Used by the
// function/pod backends, which reference code by value rather than by a
// pulled container image.
type StaticImageResolver struct{}

func (StaticImageResolver) ResolveDigest(_ context.Context, imageHash string) (string, error) {
	return imageHash, nil
}
