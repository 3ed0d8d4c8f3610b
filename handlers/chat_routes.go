package handlers

import (
	"campus-progression/middleware"
	"campus-progression/services"

	"github.com/gofiber/fiber/v2"
)

// SetupChatRoutes mounts the club chat on the /user group.
func SetupChatRoutes(user fiber.Router, chatService *services.ChatService) {
	user.Get("/clubs/:id/messages", func(c *fiber.Ctx) error {
		msgs, err := chatService.Messages(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to load messages", err)
		}
		return c.JSON(msgs)
	})

	user.Post("/clubs/:id/messages", func(c *fiber.Ctx) error {
		type Req struct {
			Content string `json:"content" validate:"required,max=2000"`
		}
		var req Req
		if err := bind(c, &req); err != nil {
			return fail(c, "invalid request", err)
		}
		msg, err := chatService.Post(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Content)
		if err != nil {
			return fail(c, "failed to post message", err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	})

	user.Get("/clubs/:id/messages/pinned", func(c *fiber.Ctx) error {
		msgs, err := chatService.Pinned(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to load pinned messages", err)
		}
		return c.JSON(msgs)
	})

	user.Post("/messages/:id/pin", func(c *fiber.Ctx) error {
		msg, err := chatService.TogglePin(c.UserContext(), middleware.UserID(c), c.Params("id"))
		if err != nil {
			return fail(c, "failed to pin message", err)
		}
		return c.JSON(fiber.Map{"id": msg.ID, "is_pinned": msg.IsPinned})
	})
}
