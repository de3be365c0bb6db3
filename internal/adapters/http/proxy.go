package http

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/eightyone/botdock/internal/core/ports"
)

// ProxyHandler routes subdomain requests (e.g. botserver.localhost) to the
// matching deployment's published port.
type ProxyHandler struct {
	service ports.ContainerService
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(service ports.ContainerService) *ProxyHandler {
	return &ProxyHandler{service: service}
}

// ProxyRequest intercepts requests whose first host label names a running
// deployment and forwards them; everything else falls through to the API.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	host := c.Hostname()

	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return c.Next()
	}
	subdomain := parts[0]

	if subdomain == "www" || subdomain == "" || subdomain == "api" {
		return c.Next()
	}

	containers, err := h.service.ListContainers(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to list deployments")
	}

	targetPort := 0
	for _, container := range containers {
		if container.Name != subdomain {
			continue
		}
		// Only proxy to running deployments with a published port.
		if container.State != "running" || container.Port == 0 {
			continue
		}
		targetPort = container.Port
		break
	}

	if targetPort == 0 {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", subdomain))
	}

	// Ports are published on all interfaces, so loopback reaches the app.
	remote, err := url.Parse(fmt.Sprintf("http://127.0.0.1:%d", targetPort))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Invalid target URL")
	}

	proxy := httputil.NewSingleHostReverseProxy(remote)

	// Rewrite the Host header to the target so the app inside sees an
	// address it recognizes.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = remote.Host
		req.URL.Host = remote.Host
		req.URL.Scheme = remote.Scheme
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(fmt.Sprintf("Proxy Info: target=%s error=%v", remote.Host, err)))
	}

	return adaptor.HTTPHandler(proxy)(c)
}
