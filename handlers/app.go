package handlers

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"campus-progression/metrics"
	"campus-progression/middleware"
	"campus-progression/progression"
	"campus-progression/services"
	"campus-progression/storage"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

var validate = validator.New()

var (
	errInvalidBody = errors.New("invalid JSON")
	errValidation  = errors.New("validation failed")
)

// Services is everything the routes call into.
type Services struct {
	Progression *services.ProgressionService
	Activity    *services.ActivityService
	Badges      *services.BadgeService
	Insights    *services.InsightService
	Chat        *services.ChatService
	Metrics     *metrics.Metrics
}

type Options struct {
	GatewayToken   string
	AllowedOrigins []string
	// AccessLog turns on the per-request log line; tests leave it off
	AccessLog bool
}

// NewApp builds the Fiber app with the middleware stack and every route mounted.
func NewApp(svc Services, opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Campus Progression",
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: ErrorHandler,
	})

	app.Use(recover.New())
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			TimeFormat: "2006-01-02 15:04:05",
			Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	origins := strings.Join(opts.AllowedOrigins, ",")
	if origins == "" {
		// fiber refuses a wildcard origin together with credentials
		origins = "http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, Content-Disposition, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Only Gateway requests allowed, health probes aside
	app.Use(middleware.GatewayAuthMiddleware(opts.GatewayToken, "/health"))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if svc.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(svc.Metrics.Handler()))
	}

	// 🔐 User routes: the gateway forwards /api/v1/campus/user/... here with X-User-ID set
	user := app.Group("/user", middleware.UserContextMiddleware())

	SetupProgressionRoutes(app, user, svc.Progression, svc.Badges)
	SetupActivityRoutes(user, svc.Activity)
	SetupInsightRoutes(user, svc.Insights)
	SetupChatRoutes(user, svc.Chat)
	return app
}

// ErrorHandler catches whatever a route returned without answering itself.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// bind parses and validates a JSON body into req.
func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errValidation, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, errValidation),
		errors.Is(err, services.ErrEmptyFeedback),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, progression.ErrInvalidAmount):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotClubManager),
		errors.Is(err, services.ErrNotEventCreator),
		errors.Is(err, services.ErrChatMembersOnly):
		return fiber.StatusForbidden
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, services.ErrNotMember):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrAlreadyMember),
		errors.Is(err, services.ErrAlreadyRegistered),
		errors.Is(err, services.ErrAccountExists),
		errors.Is(err, services.ErrManagerCannotJoin),
		errors.Is(err, services.ErrManagerCannotLeave):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrNoNewSkills):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

// fail answers with the usual {"error", "cause"} body and a status derived from err.
func fail(c *fiber.Ctx, msg string, err error) error {
	code := statusFor(err)
	if code == fiber.StatusInternalServerError {
		log.Printf("❌ %s %s: %s: %v", c.Method(), c.Path(), msg, err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
