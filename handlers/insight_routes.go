package handlers

import (
	"campus-progression/middleware"
	"campus-progression/services"

	"github.com/gofiber/fiber/v2"
)

// SetupInsightRoutes mounts on the /user group.
func SetupInsightRoutes(user fiber.Router, insightService *services.InsightService) {
	user.Get("/skills", func(c *fiber.Ctx) error {
		skills, err := insightService.Skills(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to aggregate skills", err)
		}
		return c.JSON(skills)
	})

	user.Get("/careers", func(c *fiber.Ctx) error {
		matches, err := insightService.Careers(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to match careers", err)
		}
		return c.JSON(matches)
	})

	user.Get("/recommendations", func(c *fiber.Ctx) error {
		recs, err := insightService.Recommendations(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to recommend clubs", err)
		}
		return c.JSON(recs)
	})

	user.Get("/profile/completion", func(c *fiber.Ctx) error {
		score, err := insightService.ProfileCompletion(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to score profile", err)
		}
		return c.JSON(fiber.Map{"completion_score": score})
	})

	user.Get("/dashboard", func(c *fiber.Ctx) error {
		dash, err := insightService.Dashboard(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to load dashboard", err)
		}
		return c.JSON(dash)
	})

	user.Get("/heatmap", func(c *fiber.Ctx) error {
		days, err := insightService.Heatmap(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to build heatmap", err)
		}
		return c.JSON(days)
	})

	user.Get("/portfolio", func(c *fiber.Ctx) error {
		name, body, err := insightService.Portfolio(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return fail(c, "failed to generate portfolio", err)
		}
		c.Attachment(name)
		return c.Send(body)
	})
}
