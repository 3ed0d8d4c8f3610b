package handlers

import (
	"campus-progression/middleware"
	"campus-progression/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app *fiber.App, user fiber.Router, progressionService *services.ProgressionService, badgeService *services.BadgeService) {
	user.Get("/progress", func(c *fiber.Ctx) error {
		view, err := progressionService.GetProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to get progress", err)
		}
		return c.JSON(view)
	})

	user.Get("/progress/badges", func(c *fiber.Ctx) error {
		badges, err := progressionService.Badges(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to get badges", err)
		}
		return c.JSON(badges)
	})

	user.Get("/progress/stream", streamBadges(progressionService))

	user.Get("/search", func(c *fiber.Ctx) error {
		users, err := progressionService.SearchUsers(c.UserContext(), c.Query("q"), c.QueryInt("limit", 50))
		if err != nil {
			return fail(c, "search failed", err)
		}
		return c.JSON(users)
	})

	user.Get("/achievements", func(c *fiber.Ctx) error {
		list, err := badgeService.Achievements(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to get achievements", err)
		}
		return c.JSON(list)
	})

	user.Post("/activity/login", func(c *fiber.Ctx) error {
		res, err := progressionService.Login(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to record login", err)
		}
		return c.JSON(res)
	})

	user.Post("/badges/reconcile", func(c *fiber.Ctx) error {
		res, err := badgeService.Reconcile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "badge reconciliation failed", err)
		}
		return c.JSON(res)
	})

	app.Get("/leaderboard", func(c *fiber.Ctx) error {
		board, err := progressionService.Leaderboard(c.UserContext(), c.QueryInt("limit", services.DefaultLeaderboardSize))
		if err != nil {
			return fail(c, "failed to load leaderboard", err)
		}
		return c.JSON(board)
	})

	app.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := progressionService.Stats(c.UserContext())
		if err != nil {
			return fail(c, "failed to load stats", err)
		}
		return c.JSON(stats)
	})

	// Admin endpoints
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.RequireRole(middleware.RoleAdmin))

	admin.Post("/xp/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id" validate:"required,max=128"`
			XP     int64  `json:"xp" validate:"required,min=1"`
			Reason string `json:"reason" validate:"max=255"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}

		res, err := progressionService.GrantXP(c.UserContext(), req.UserID, req.XP, req.Reason)
		if err != nil {
			return fail(c, "XP award failed", err)
		}
		return c.JSON(fiber.Map{
			"message": "XP granted successfully",
			"user_id": req.UserID,
			"xp":      req.XP,
			"result":  res,
		})
	})
}
