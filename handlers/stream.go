package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"campus-progression/middleware"
	"campus-progression/services"

	"github.com/gofiber/fiber/v2"
)

// badgeStreamInterval is how often an open stream polls for new badges
const badgeStreamInterval = 2 * time.Second

// streamBadges pushes a "badge" event for every badge awarded after the stream
// opened, so the UI can toast it without polling.
func streamBadges(progressionService *services.ProgressionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		// the fiber.Ctx is recycled once the handler returns; the stream keeps the fasthttp one
		rc := c.Context()

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		rc.SetBodyStreamWriter(func(w *bufio.Writer) {
			ticker := time.NewTicker(badgeStreamInterval)
			defer ticker.Stop()

			cursor := badgeCursor(rc, progressionService, userID)

			// initial keepalive
			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}

			for {
				select {
				case <-ticker.C:
					badges, latest, err := progressionService.BadgesSince(rc, userID, cursor)
					if err != nil {
						log.Printf("[BadgeStream] query error for user %s: %v", userID, err)
						continue
					}
					cursor = latest
					for _, b := range badges {
						payload, _ := json.Marshal(b)
						fmt.Fprintf(w, "event: badge\ndata: %s\n\n", payload)
					}
					if len(badges) == 0 {
						w.WriteString(":\n\n")
					}
					if err := w.Flush(); err != nil {
						// client went away
						return
					}
				case <-rc.Done():
					return
				}
			}
		})
		return nil
	}
}

// badgeCursor is where a new stream starts: after the newest badge the user
// already holds. If that can't be read, it starts now so held badges are not
// replayed as new ones.
func badgeCursor(ctx context.Context, progressionService *services.ProgressionService, userID string) time.Time {
	_, latest, err := progressionService.BadgesSince(ctx, userID, time.Time{})
	if err == nil {
		return latest
	}
	log.Printf("[BadgeStream] init error for user %s: %v", userID, err)
	if progressionService.Now != nil {
		return progressionService.Now()
	}
	return time.Now()
}
