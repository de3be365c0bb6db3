package http

import (
	"path/filepath"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eightyone/botdock/internal/config"
	"github.com/eightyone/botdock/internal/core/domain"
	"github.com/eightyone/botdock/internal/core/ports"
)

// DeploymentHandler exposes the build-and-run pipeline over HTTP.
type DeploymentHandler struct {
	service ports.ContainerService
	builder ports.BuilderService
	cfg     config.Deployd
	log     zerolog.Logger

	mu          sync.RWMutex
	deployments map[string]domain.Deployment
}

func NewDeploymentHandler(service ports.ContainerService, builder ports.BuilderService, cfg config.Deployd, log zerolog.Logger) *DeploymentHandler {
	return &DeploymentHandler{
		service:     service,
		builder:     builder,
		cfg:         cfg,
		log:         log,
		deployments: make(map[string]domain.Deployment),
	}
}

func (h *DeploymentHandler) ListDeployments(c *fiber.Ctx) error {
	containers, err := h.service.ListContainers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(containers)
}

type CreateDeploymentRequest struct {
	Name       string         `json:"name"`
	RepoURL    string         `json:"repo_url"`
	ContextDir string         `json:"context_dir"`
	Recipe     *domain.Recipe `json:"recipe"`
	// HostPort overrides the published port; defaults to the recipe port.
	HostPort int `json:"host_port"`
}

// CreateDeployment builds the image from the request's source and recipe,
// launches it with the port contract, and waits until the application
// answers. Every step is fail-fast: the first error aborts the deployment
// and nothing half-started is kept.
func (h *DeploymentHandler) CreateDeployment(c *fiber.Ctx) error {
	var req CreateDeploymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Deployment name is required",
		})
	}
	if req.RepoURL == "" && req.ContextDir == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Repo URL or context dir is required",
		})
	}

	recipe := domain.DefaultRecipe()
	switch {
	case req.Recipe != nil:
		recipe = *req.Recipe
		if err := recipe.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	case req.ContextDir != "":
		// Local trees may carry their own recipe file.
		r, err := domain.LoadRecipe(filepath.Join(req.ContextDir, "botdock.yaml"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		recipe = r
	}

	imageName := "botdock/" + req.Name
	src := ports.Source{RepoURL: req.RepoURL, Dir: req.ContextDir}
	if _, err := h.builder.BuildImage(c.Context(), src, recipe, imageName); err != nil {
		buildsTotal.WithLabelValues("failure").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Build failed: " + err.Error(),
		})
	}
	buildsTotal.WithLabelValues("success").Inc()

	hostPort := req.HostPort
	if hostPort <= 0 {
		hostPort = recipe.Port
	}
	containerID, err := h.service.StartContainer(c.Context(), domain.LaunchSpec{
		Image:    imageName,
		Name:     req.Name,
		Port:     recipe.Port,
		HostPort: hostPort,
	})
	if err != nil {
		deploysTotal.WithLabelValues("failure").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := h.service.WaitReady(c.Context(), containerID, hostPort, h.cfg.ReadyTimeout); err != nil {
		deploysTotal.WithLabelValues("failure").Inc()
		// The container never served; stop it so no dead listener lingers.
		if stopErr := h.service.StopContainer(c.Context(), containerID); stopErr != nil {
			h.log.Error().Err(stopErr).Str("container", containerID).Msg("failed to stop unready container")
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Deployment not ready: " + err.Error(),
		})
	}
	deploysTotal.WithLabelValues("success").Inc()
	activeDeployments.Inc()

	dep := domain.Deployment{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Image:     imageName,
		Container: containerID,
		Port:      hostPort,
	}
	h.mu.Lock()
	h.deployments[dep.ID] = dep
	h.mu.Unlock()

	h.log.Info().Str("name", dep.Name).Str("container", containerID).Int("port", hostPort).Msg("deployment ready")
	return c.Status(fiber.StatusCreated).JSON(dep)
}

// StopDeployment accepts a deployment ID or a raw container ID.
func (h *DeploymentHandler) StopDeployment(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Deployment ID is required",
		})
	}

	containerID := id
	h.mu.Lock()
	if dep, ok := h.deployments[id]; ok {
		containerID = dep.Container
		delete(h.deployments, id)
		activeDeployments.Dec()
	}
	h.mu.Unlock()

	if err := h.service.StopContainer(c.Context(), containerID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *DeploymentHandler) GetDeploymentLogs(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Deployment ID is required",
		})
	}

	h.mu.RLock()
	if dep, ok := h.deployments[id]; ok {
		id = dep.Container
	}
	h.mu.RUnlock()

	logs, err := h.service.GetContainerLogs(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	c.Set("Content-Type", "text/plain")
	return c.SendStream(logs)
}
