package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eightyone/botdock/internal/config"
	"github.com/eightyone/botdock/internal/core/domain"
	"github.com/eightyone/botdock/internal/core/ports"
)

type fakeBuilder struct {
	builtImage  string
	builtRecipe domain.Recipe
	builtSrc    ports.Source
	err         error
}

func (b *fakeBuilder) BuildImage(_ context.Context, src ports.Source, recipe domain.Recipe, imageName string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.builtImage = imageName
	b.builtRecipe = recipe
	b.builtSrc = src
	return imageName, nil
}

type fakeContainers struct {
	containers []domain.Container
	started    []domain.LaunchSpec
	stopped    []string
	startErr   error
	readyErr   error
	logs       string
}

func (f *fakeContainers) ListContainers(context.Context) ([]domain.Container, error) {
	return f.containers, nil
}

func (f *fakeContainers) StartContainer(_ context.Context, spec domain.LaunchSpec) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started = append(f.started, spec)
	return "cid-" + spec.Name, nil
}

func (f *fakeContainers) WaitReady(context.Context, string, int, time.Duration) error {
	return f.readyErr
}

func (f *fakeContainers) StopContainer(_ context.Context, id string) error {
	f.stopped = append(f.stopped, id)
	return nil
}

func (f *fakeContainers) GetContainerLogs(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.logs)), nil
}

func newTestAPI(t *testing.T, service *fakeContainers, builder *fakeBuilder) *fiber.App {
	t.Helper()
	cfg := config.Deployd{Host: "127.0.0.1", Port: 3000, BaseDomain: "localhost", ReadyTimeout: time.Second}
	h := NewDeploymentHandler(service, builder, cfg, zerolog.Nop())

	app := fiber.New()
	app.Get("/api/v1/deployments", h.ListDeployments)
	app.Post("/api/v1/deployments", h.CreateDeployment)
	app.Delete("/api/v1/deployments/:id", h.StopDeployment)
	app.Get("/api/v1/deployments/:id/logs", h.GetDeploymentLogs)
	return app
}

func createRequest(t *testing.T, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, "/api/v1/deployments", bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCreateDeployment(t *testing.T) {
	service := &fakeContainers{}
	builder := &fakeBuilder{}
	app := newTestAPI(t, service, builder)

	resp, err := app.Test(createRequest(t, map[string]any{
		"name":     "botserver",
		"repo_url": "https://example.com/bot.git",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var dep domain.Deployment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dep))
	assert.NotEmpty(t, dep.ID)
	assert.Equal(t, "botserver", dep.Name)
	assert.Equal(t, "botdock/botserver", dep.Image)
	assert.Equal(t, "cid-botserver", dep.Container)

	// Without an explicit recipe the default python contract applies.
	assert.Equal(t, domain.RuntimePython, builder.builtRecipe.Runtime)
	assert.Equal(t, "https://example.com/bot.git", builder.builtSrc.RepoURL)

	require.Len(t, service.started, 1)
	assert.Equal(t, domain.DefaultPort, service.started[0].Port)
	assert.Equal(t, domain.DefaultPort, service.started[0].HostPort)
}

func TestCreateDeploymentRecipeFromContextDir(t *testing.T) {
	dir := t.TempDir()
	recipe := "runtime: python\nbase_image: python:3.12-slim\nport: 8200\nworkers: 2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "botdock.yaml"), []byte(recipe), 0o644))

	service := &fakeContainers{}
	builder := &fakeBuilder{}
	app := newTestAPI(t, service, builder)

	resp, err := app.Test(createRequest(t, map[string]any{
		"name":        "botserver",
		"context_dir": dir,
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Fields from the file win; the rest keep their defaults.
	assert.Equal(t, "python:3.12-slim", builder.builtRecipe.BaseImage)
	assert.Equal(t, 8200, builder.builtRecipe.Port)
	assert.Equal(t, 2, builder.builtRecipe.Workers)
	assert.Equal(t, "bot_server", builder.builtRecipe.Module)
	assert.Equal(t, dir, builder.builtSrc.Dir)

	require.Len(t, service.started, 1)
	assert.Equal(t, 8200, service.started[0].Port)
}

func TestCreateDeploymentHostPortOverride(t *testing.T) {
	service := &fakeContainers{}
	app := newTestAPI(t, service, &fakeBuilder{})

	resp, err := app.Test(createRequest(t, map[string]any{
		"name":      "botserver",
		"repo_url":  "https://example.com/bot.git",
		"host_port": 8123,
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Len(t, service.started, 1)
	assert.Equal(t, domain.DefaultPort, service.started[0].Port)
	assert.Equal(t, 8123, service.started[0].HostPort)
}

func TestCreateDeploymentValidation(t *testing.T) {
	app := newTestAPI(t, &fakeContainers{}, &fakeBuilder{})

	resp, err := app.Test(createRequest(t, map[string]any{"repo_url": "https://example.com/bot.git"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(createRequest(t, map[string]any{"name": "botserver"}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(createRequest(t, map[string]any{
		"name":     "botserver",
		"repo_url": "https://example.com/bot.git",
		"recipe":   map[string]any{"runtime": "ruby"},
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateDeploymentBuildFailure(t *testing.T) {
	service := &fakeContainers{}
	app := newTestAPI(t, service, &fakeBuilder{err: fmt.Errorf("manifest not found")})

	resp, err := app.Test(createRequest(t, map[string]any{
		"name":     "botserver",
		"repo_url": "https://example.com/bot.git",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "manifest not found")
	assert.Empty(t, service.started)
}

func TestCreateDeploymentNotReady(t *testing.T) {
	service := &fakeContainers{readyErr: fmt.Errorf("container exited with code 3")}
	app := newTestAPI(t, service, &fakeBuilder{})

	resp, err := app.Test(createRequest(t, map[string]any{
		"name":     "botserver",
		"repo_url": "https://example.com/bot.git",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Deployment not ready")
	// The dead container must not keep running.
	assert.Equal(t, []string{"cid-botserver"}, service.stopped)
}

func TestListDeployments(t *testing.T) {
	service := &fakeContainers{containers: []domain.Container{
		{ID: "abc123", Name: "botserver", State: "running", Port: 10000},
	}}
	app := newTestAPI(t, service, &fakeBuilder{})

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/deployments", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got []domain.Container
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "botserver", got[0].Name)
}

func TestStopDeploymentByDeploymentID(t *testing.T) {
	service := &fakeContainers{}
	app := newTestAPI(t, service, &fakeBuilder{})

	resp, err := app.Test(createRequest(t, map[string]any{
		"name":     "botserver",
		"repo_url": "https://example.com/bot.git",
	}))
	require.NoError(t, err)
	var dep domain.Deployment
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&dep))

	req, _ := http.NewRequest(http.MethodDelete, "/api/v1/deployments/"+dep.ID, nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"cid-botserver"}, service.stopped)
}

func TestStopDeploymentByContainerID(t *testing.T) {
	service := &fakeContainers{}
	app := newTestAPI(t, service, &fakeBuilder{})

	req, _ := http.NewRequest(http.MethodDelete, "/api/v1/deployments/raw-cid", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"raw-cid"}, service.stopped)
}

func TestGetDeploymentLogs(t *testing.T) {
	service := &fakeContainers{logs: "booting gunicorn\n"}
	app := newTestAPI(t, service, &fakeBuilder{})

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/deployments/cid-1/logs", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "booting gunicorn")
}
