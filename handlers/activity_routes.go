package handlers

import (
	"time"

	"campus-progression/middleware"
	"campus-progression/progression"
	"campus-progression/services"

	"github.com/gofiber/fiber/v2"
)

// SetupActivityRoutes mounts on the /user group.
func SetupActivityRoutes(user fiber.Router, activityService *services.ActivityService) {
	user.Post("/register", func(c *fiber.Ctx) error {
		type Req struct {
			Username  string   `json:"username" validate:"required,min=2,max=64"`
			Email     string   `json:"email" validate:"required,email"`
			College   string   `json:"college" validate:"max=128"`
			Interests []string `json:"interests" validate:"max=20,dive,max=64"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}
		res, err := activityService.RegisterAccount(c.UserContext(), middleware.UserID(c), services.AccountInput{
			Username:  req.Username,
			Email:     req.Email,
			College:   req.College,
			Interests: req.Interests,
		})
		if err != nil {
			return fail(c, "registration failed", err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	user.Patch("/profile", func(c *fiber.Ctx) error {
		type Req struct {
			College   *string  `json:"college" validate:"omitempty,max=128"`
			Interests []string `json:"interests" validate:"omitempty,max=20,dive,max=64"`
			// comma-separated alternative to interests, as the profile form sends it
			Hobbies *string `json:"hobbies" validate:"omitempty,max=1300"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}
		if req.Interests == nil && req.Hobbies != nil {
			req.Interests = append([]string{}, progression.ParseInterests(*req.Hobbies)...)
		}
		prog, err := activityService.UpdateProfile(c.UserContext(), middleware.UserID(c), services.ProfileInput{
			College:   req.College,
			Interests: req.Interests,
		})
		if err != nil {
			return fail(c, "profile update failed", err)
		}
		return c.JSON(prog)
	})

	user.Post("/clubs", func(c *fiber.Ctx) error {
		type Req struct {
			Name        string `json:"name" validate:"required,min=2,max=100"`
			Description string `json:"description" validate:"required,max=2000"`
			Category    string `json:"category" validate:"max=50"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}
		club, res, err := activityService.CreateClub(c.UserContext(), middleware.UserID(c), services.ClubInput{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
		})
		if err != nil {
			return fail(c, "failed to create club", err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"club":   club,
			"result": res,
		})
	})

	user.Post("/clubs/:id/join", func(c *fiber.Ctx) error {
		res, err := activityService.JoinClub(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to join club", err)
		}
		return c.JSON(res)
	})

	user.Post("/clubs/:id/leave", func(c *fiber.Ctx) error {
		if err := activityService.LeaveClub(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return fail(c, "failed to leave club", err)
		}
		return c.JSON(fiber.Map{"message": "You have left the club."})
	})

	user.Delete("/clubs/:id", func(c *fiber.Ctx) error {
		if err := activityService.DeleteClub(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return fail(c, "failed to delete club", err)
		}
		return c.JSON(fiber.Map{"message": "Club and all its associated data have been permanently deleted."})
	})

	user.Post("/clubs/:id/feedback", func(c *fiber.Ctx) error {
		type Req struct {
			Content string `json:"content" validate:"required,max=5000"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}
		res, err := activityService.SubmitFeedback(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Content)
		if err != nil {
			return fail(c, "failed to submit feedback", err)
		}
		return c.JSON(res)
	})

	user.Post("/events", func(c *fiber.Ctx) error {
		type Req struct {
			ClubID      string    `json:"club_id" validate:"required"`
			Title       string    `json:"title" validate:"required,max=200"`
			Description string    `json:"description" validate:"max=5000"`
			EventDate   time.Time `json:"event_date" validate:"required"`
			Difficulty  string    `json:"difficulty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
			XPReward    *int64    `json:"xp_reward" validate:"omitempty,min=0,max=1000"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}
		event, res, err := activityService.CreateEvent(c.UserContext(), middleware.UserID(c), services.EventInput{
			ClubID:      req.ClubID,
			Title:       req.Title,
			Description: req.Description,
			EventDate:   req.EventDate,
			Difficulty:  req.Difficulty,
			XPReward:    req.XPReward,
		})
		if err != nil {
			return fail(c, "failed to create event", err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"event":  event,
			"result": res,
		})
	})

	user.Post("/events/:id/register", func(c *fiber.Ctx) error {
		res, err := activityService.RegisterForEvent(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to register for event", err)
		}
		return c.JSON(res)
	})

	user.Delete("/events/:id", func(c *fiber.Ctx) error {
		if err := activityService.DeleteEvent(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
			return fail(c, "failed to delete event", err)
		}
		return c.JSON(fiber.Map{"message": "Event has been deleted."})
	})

	user.Post("/skills", func(c *fiber.Ctx) error {
		type Req struct {
			Skills []string `json:"skills" validate:"required,min=1,max=50,dive,required,max=64"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}
		res, err := activityService.AddSkills(c.UserContext(), middleware.UserID(c), req.Skills)
		if err != nil {
			return fail(c, "failed to add skills", err)
		}
		return c.JSON(res)
	})
}
