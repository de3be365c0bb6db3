package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botdock_builds_total",
		Help: "Image builds by outcome.",
	}, []string{"status"})

	deploysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "botdock_deployments_total",
		Help: "Deployment launches by outcome.",
	}, []string{"status"})

	activeDeployments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "botdock_active_deployments",
		Help: "Deployments currently tracked as running.",
	})
)

// MetricsHandler serves the Prometheus registry through Fiber.
func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
