package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eightyone/botdock/internal/core/domain"
)

func TestRenderDockerfileStepOrder(t *testing.T) {
	out, err := RenderDockerfile(domain.DefaultRecipe())
	require.NoError(t, err)

	// Assembly order: OS packages -> font cache -> manifest install ->
	// app copy -> expose -> launch.
	steps := []string{
		"FROM python:3.11-slim",
		"apt-get install -y --no-install-recommends fontconfig fonts-noto-cjk",
		"fc-cache -f",
		"COPY requirements.txt .",
		"RUN pip install --no-cache-dir -r requirements.txt",
		"COPY . .",
		"EXPOSE 10000",
		"CMD gunicorn bot_server:app",
	}
	last := -1
	for _, step := range steps {
		idx := strings.Index(out, step)
		require.GreaterOrEqual(t, idx, 0, "missing step %q", step)
		assert.Greater(t, idx, last, "step %q out of order", step)
		last = idx
	}

	// The dependency layer must precede the application copy so a failed
	// resolution never places the app tree into the image.
	assert.Less(t, strings.Index(out, "pip install"), strings.Index(out, "COPY . ."))
}

func TestRenderDockerfilePortFallback(t *testing.T) {
	r := domain.DefaultRecipe()
	r.Port = 8123
	out, err := RenderDockerfile(r)
	require.NoError(t, err)

	// PORT from the environment wins; the recipe port is the fallback.
	assert.Contains(t, out, "--bind 0.0.0.0:${PORT:-8123}")
	assert.Contains(t, out, "EXPOSE 8123")
}

func TestRenderDockerfileDeterministic(t *testing.T) {
	r := domain.DefaultRecipe()
	a, err := RenderDockerfile(r)
	require.NoError(t, err)
	b, err := RenderDockerfile(r)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRenderDockerfileWorkers(t *testing.T) {
	r := domain.DefaultRecipe()
	out, err := RenderDockerfile(r)
	require.NoError(t, err)
	assert.NotContains(t, out, "--workers", "zero workers leaves the supervisor default")

	r.Workers = 4
	out, err = RenderDockerfile(r)
	require.NoError(t, err)
	assert.Contains(t, out, "--workers 4")
}

func TestRenderDockerfileGoRuntime(t *testing.T) {
	r := domain.Recipe{
		Runtime:          domain.RuntimeGo,
		BaseImage:        "alpine:3.20",
		SystemPackages:   []string{"fontconfig", "font-noto-cjk"},
		RebuildFontCache: true,
		Manifest:         "go.mod",
		Module:           "botserver",
		Object:           "app",
		Port:             10000,
	}
	out, err := RenderDockerfile(r)
	require.NoError(t, err)
	assert.Contains(t, out, "FROM golang:1.24-alpine AS build")
	assert.Contains(t, out, "go build -o botserver ./cmd/botserver")
	assert.Contains(t, out, "FROM alpine:3.20")
	assert.Contains(t, out, "apk add --no-cache fontconfig font-noto-cjk && fc-cache -f")
}

func TestRenderDockerfileRejectsInvalidRecipe(t *testing.T) {
	r := domain.DefaultRecipe()
	r.Manifest = ""
	_, err := RenderDockerfile(r)
	require.Error(t, err)
}

func TestParseManifest(t *testing.T) {
	in := `
# chart deps
flask==3.0.0
gunicorn
pandas>=2.1

requests ==2.31.0
`
	reqs, err := ParseManifest(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, reqs, 4)
	assert.Equal(t, Requirement{Name: "flask", Constraint: "==3.0.0"}, reqs[0])
	assert.Equal(t, Requirement{Name: "gunicorn"}, reqs[1])
	assert.Equal(t, Requirement{Name: "pandas", Constraint: ">=2.1"}, reqs[2])
	assert.Equal(t, Requirement{Name: "requests", Constraint: "==2.31.0"}, reqs[3])
}

func TestParseManifestEmpty(t *testing.T) {
	_, err := ParseManifest(strings.NewReader("\n# nothing here\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestParseManifestFileMissing(t *testing.T) {
	_, err := ParseManifestFile(t.TempDir() + "/requirements.txt")
	require.Error(t, err)
}
