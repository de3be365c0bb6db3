package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog"

	"github.com/eightyone/botdock/internal/core/domain"
	"github.com/eightyone/botdock/internal/core/ports"
)

// Adapter implements ports.BuilderService using the Docker engine.
type Adapter struct {
	cli *client.Client
	log zerolog.Logger
}

func NewBuilderAdapter(log zerolog.Logger) (*Adapter, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Adapter{cli: cli, log: log}, nil
}

// BuildImage stages the source tree, verifies the dependency manifest,
// renders the recipe into a Dockerfile when the tree has none, and builds
// the image. Any failing step aborts the whole assembly; no partial image
// is tagged.
func (a *Adapter) BuildImage(ctx context.Context, src ports.Source, recipe domain.Recipe, imageName string) (string, error) {
	if err := recipe.Validate(); err != nil {
		return "", err
	}

	ctxDir, err := a.stageContext(ctx, src)
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(ctxDir)

	// The manifest is checked before any image step so a broken recipe fails
	// without touching the engine and the application tree never enters a
	// failed image.
	if _, err := ParseManifestFile(filepath.Join(ctxDir, recipe.Manifest)); err != nil {
		return "", err
	}

	dockerfile := filepath.Join(ctxDir, "Dockerfile")
	if _, err := os.Stat(dockerfile); errors.Is(err, os.ErrNotExist) {
		rendered, err := RenderDockerfile(recipe)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(dockerfile, []byte(rendered), 0o644); err != nil {
			return "", fmt.Errorf("failed to write dockerfile: %w", err)
		}
	} else if err != nil {
		return "", fmt.Errorf("failed to stat dockerfile: %w", err)
	}

	tar, err := archive.TarWithOptions(ctxDir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to create build context: %w", err)
	}

	a.log.Info().Str("image", imageName).Msg("building image")
	resp, err := a.cli.ImageBuild(ctx, tar, types.ImageBuildOptions{
		Tags:       []string{imageName},
		Dockerfile: "Dockerfile",
		Remove:     true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to build image: %w", err)
	}
	defer resp.Body.Close()

	if err := a.drainBuildStream(resp.Body); err != nil {
		return "", err
	}
	return imageName, nil
}

// stageContext materializes the build context in a temp directory: a shallow
// clone for git sources, a copy for local directories.
func (a *Adapter) stageContext(ctx context.Context, src ports.Source) (string, error) {
	tmpDir, err := os.MkdirTemp("", "botdock-build-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	switch {
	case src.RepoURL != "":
		a.log.Info().Str("repo", src.RepoURL).Msg("cloning source")
		_, err = git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{
			URL:   src.RepoURL,
			Depth: 1,
		})
		if err != nil {
			os.RemoveAll(tmpDir)
			return "", fmt.Errorf("failed to clone repo: %w", err)
		}
	case src.Dir != "":
		if err := copyFS(tmpDir, os.DirFS(src.Dir)); err != nil {
			os.RemoveAll(tmpDir)
			return "", fmt.Errorf("failed to stage context from %s: %w", src.Dir, err)
		}
	default:
		os.RemoveAll(tmpDir)
		return "", fmt.Errorf("source requires a repo URL or a directory")
	}
	return tmpDir, nil
}

// drainBuildStream reads the engine's build progress stream to completion
// and surfaces the first errored step. The stream must be fully consumed
// for the build to finish.
func (a *Adapter) drainBuildStream(body io.Reader) error {
	dec := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read build stream: %w", err)
		}
		if msg.Error != nil {
			return fmt.Errorf("build step failed: %s", msg.Error.Message)
		}
		if msg.Stream != "" {
			a.log.Debug().Msg(msg.Stream)
		}
	}
}
