package ports

import (
	"context"

	"github.com/eightyone/botdock/internal/core/domain"
)

// Source names where an application tree comes from: a git repository to
// clone or a directory already on disk. Exactly one field is set.
type Source struct {
	RepoURL string
	Dir     string
}

// BuilderService assembles application images from a source tree and a
// recipe. Assembly is all-or-nothing: any failing step (package install,
// dependency resolution, missing manifest) aborts the whole build.
type BuilderService interface {
	// BuildImage fetches the source, renders the recipe into a Dockerfile
	// when the tree does not carry one, and builds the image. It returns the
	// image tag or the error of the first failing step.
	BuildImage(ctx context.Context, src Source, recipe domain.Recipe, imageName string) (string, error)
}
