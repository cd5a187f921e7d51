package router

import (
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	apiv1 "github.com/resumeforge/ResumeForge/internal/api/v1"
	"github.com/resumeforge/ResumeForge/internal/pkg/cache"
	"github.com/resumeforge/ResumeForge/internal/pkg/constants"
	"github.com/resumeforge/ResumeForge/internal/pkg/env"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    limiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// API v1 routes
	v1 := api.Group(constants.APIV1Route)
	apiServer := apiv1.NewAPIServer()
	apiv1.RegisterHandlers(v1, apiServer)
}

// limiterStorage backs the rate limiter with Redis so limits hold across
// instances. Falls back to the in-memory default when Redis is not up yet.
func limiterStorage() fiber.Storage {
	client := cache.GetClient()
	if client == nil {
		return nil
	}

	host := "localhost"
	port := 6379
	if h, p, err := net.SplitHostPort(client.Options().Addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	password := client.Options().Password
	if password == "" {
		password = env.GetEnv("CACHE_PASSWORD", "")
	}

	// Database 1 keeps limiter keys out of the cache keyspace (DB 0).
	return redisstorage.New(redisstorage.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
