package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"timeclock/config"
	"timeclock/database"
	"timeclock/events"
	"timeclock/handlers"
	"timeclock/middleware"
	"timeclock/models"
	"timeclock/payroll"
	"timeclock/session"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logrus.SetLevel(cfg.LogLevel)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Initialize JWT secret
	middleware.SetJWTSecret(cfg.JWTSecret)

	// Initialize database
	if err := database.Init(cfg.DatabaseURL); err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}

	// Domain events go to the log and to any in-process subscribers; the
	// real-time transport attaches to the bus.
	bus := events.NewBus()
	emitter := events.Multi{
		&events.LogEmitter{Logger: logrus.StandardLogger()},
		bus,
	}

	manager := session.NewManager(database.GetDB(), emitter, cfg.DBTimeout)
	calculator := payroll.NewCalculator(database.GetDB(), payroll.NoAdjustments{}, cfg.EarningsBatchSize, cfg.DBTimeout)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg)
	subTaskHandler := handlers.NewSubTaskHandler(manager)
	payrollHandler := handlers.NewPayrollHandler(calculator)
	exportHandler := handlers.NewExportHandler()

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)

	// Public routes
	router.Post("/auth/login", authHandler.Login)

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)

		r.Post("/auth/change-password", authHandler.ChangePassword)

		r.Get("/subtasks/active", subTaskHandler.Active)
		r.Get("/subtasks/task/{taskId}", subTaskHandler.ByTask)
		r.Post("/subtasks/{id}/start", subTaskHandler.Start)
		r.Post("/subtasks/{id}/stop", subTaskHandler.Stop)
		r.Post("/subtasks/{id}/complete", subTaskHandler.Complete)
		r.Post("/subtasks/{id}/auto-stop", subTaskHandler.AutoStop)

		r.Get("/payroll/current-earnings", payrollHandler.CurrentEarnings)
		r.Get("/payroll/current-earnings/{userId}", payrollHandler.CurrentEarningsFor)
		r.Get("/payroll/company-earnings", payrollHandler.CompanyEarnings)

		// Admin and HR only routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleAdmin, models.RoleHR))
			r.Get("/export/timelogs.csv", exportHandler.TimeLogsCSV)
		})
	})

	logrus.Infof("Server starting on port %s", cfg.ServerPort)
	logrus.Fatal(http.ListenAndServe(":"+cfg.ServerPort, router))
}
