package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/resumeforge/ResumeForge/app/controllers"
	"github.com/resumeforge/ResumeForge/app/repository"
	"github.com/resumeforge/ResumeForge/internal/pkg/cache"
	"github.com/resumeforge/ResumeForge/internal/pkg/credits"
	"github.com/resumeforge/ResumeForge/internal/pkg/database"
	"github.com/resumeforge/ResumeForge/internal/pkg/env"
	"github.com/resumeforge/ResumeForge/internal/pkg/jobqueue"
	"github.com/resumeforge/ResumeForge/internal/pkg/optimizer"
	"github.com/resumeforge/ResumeForge/internal/pkg/payloadarchive"
	"github.com/resumeforge/ResumeForge/internal/pkg/payments"
	"github.com/resumeforge/ResumeForge/internal/pkg/router"
)

func main() {
	app, queue := NewApplication()

	// Graceful shutdown: drain the queue workers before the listener dies.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		queue.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, *jobqueue.Queue) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repository.InitializeFactory(database.GetDB())
	repos := repository.GetGlobalRepositories()

	ledger := credits.NewLedger(repos.Credit, credits.NewRedisBalanceCache())
	gate := credits.NewGate(ledger)

	archiver, err := payloadarchive.NewArchiverFromEnv()
	if err != nil {
		logrus.WithError(err).Warn("payload archive disabled: S3 connection failed")
	}
	dispatcherCfg := payments.DispatcherConfig{
		Secrets: webhookSecretsFromEnv(),
	}
	if archiver != nil {
		dispatcherCfg.Archiver = archiver
	}
	dispatcher := payments.NewDispatcher(repos.WebhookEvent, ledger, dispatcherCfg)

	workers, _ := strconv.Atoi(env.GetEnv("QUEUE_WORKERS", "4"))
	queue := jobqueue.NewQueue(cache.GetClient(), workers, logrus.StandardLogger())
	processor := jobqueue.NewOptimizationProcessor(repos.Optimization, optimizer.NewClientFromEnv(), logrus.StandardLogger())
	queue.RegisterHandler(jobqueue.JobTypeOptimization, processor.Handle)
	queue.Start()

	controllers.InitServices(&controllers.Services{
		Ledger:        ledger,
		Gate:          gate,
		Dispatcher:    dispatcher,
		Queue:         queue,
		Optimizations: repos.Optimization,
	})

	// init fiber app
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024, // webhook and API payloads are small
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// fiber metrics
	app.Get("/metrics", basicauth.New(basicauth.Config{
		Users: map[string]string{
			env.GetEnv("METRICS_USER", "admin"): env.GetEnv("METRICS_PASSWORD", "test"),
		},
	}), monitor.New())

	// SWAGGER / OPENAPI
	openAPICfg := swagger.Config{
		BasePath: "/docs/api/",
		FilePath: "./public/docs/v1/openapi.yml",
		Path:     "v1",
	}
	app.Use(swagger.New(openAPICfg))

	// ROUTER
	router.InstallRouter(app)

	return app, queue
}

func webhookSecretsFromEnv() map[string]string {
	secrets := map[string]string{}
	if s := env.GetEnv("STRIPE_WEBHOOK_SECRET", ""); s != "" {
		secrets["stripe"] = s
	}
	if s := env.GetEnv("PADDLE_WEBHOOK_SECRET", ""); s != "" {
		secrets["paddle"] = s
	}
	return secrets
}
