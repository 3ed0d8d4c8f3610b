package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"campus-progression/models"
	"campus-progression/storage"
)

var (
	ErrChatMembersOnly = errors.New("membership required to access chat")
	ErrEmptyMessage    = errors.New("message content is empty")
)

// ChatService is the per-club message board. Approved members and the club
// manager may read and post; only the manager pins. Chat earns no XP.
type ChatService struct {
	Store storage.Store
}

func NewChatService(store storage.Store) *ChatService {
	return &ChatService{Store: store}
}

func canChat(tx storage.Tx, userID, clubID string) error {
	club, err := tx.GetClub(clubID)
	if err != nil {
		return fmt.Errorf("club %s: %w", clubID, err)
	}
	if club.ManagerID == userID {
		return nil
	}
	m, err := tx.GetMembership(userID, clubID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrChatMembersOnly
	}
	if err != nil {
		return err
	}
	if m.Status != models.MembershipApproved {
		return ErrChatMembersOnly
	}
	return nil
}

func (s *ChatService) Post(ctx context.Context, userID, clubID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	var msg models.Message
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		if err := canChat(tx, userID, clubID); err != nil {
			return err
		}
		prog, err := tx.EnsureProgress(userID)
		if err != nil {
			return err
		}
		msg = models.Message{ClubID: clubID, ExternalUserID: userID, Username: prog.Username, Content: content}
		if msg.Username == "" {
			msg.Username = userID
		}
		return tx.CreateMessage(&msg)
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages returns the club's chat, oldest first.
func (s *ChatService) Messages(ctx context.Context, userID, clubID string) ([]models.Message, error) {
	return s.list(ctx, userID, clubID, storage.Tx.ClubMessages)
}

// Pinned returns the pinned messages, newest first.
func (s *ChatService) Pinned(ctx context.Context, userID, clubID string) ([]models.Message, error) {
	return s.list(ctx, userID, clubID, storage.Tx.PinnedMessages)
}

func (s *ChatService) list(ctx context.Context, userID, clubID string, load func(storage.Tx, string) ([]models.Message, error)) ([]models.Message, error) {
	out := []models.Message{}
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		if err := canChat(tx, userID, clubID); err != nil {
			return err
		}
		msgs, err := load(tx, clubID)
		if err != nil {
			return err
		}
		out = append(out, msgs...)
		return nil
	})
	return out, err
}

// TogglePin flips a message's pin. Only the club's manager may.
func (s *ChatService) TogglePin(ctx context.Context, userID, messageID string) (*models.Message, error) {
	var msg *models.Message
	err := s.Store.Transaction(ctx, func(tx storage.Tx) error {
		m, err := tx.GetMessage(messageID)
		if err != nil {
			return fmt.Errorf("message %s: %w", messageID, err)
		}
		club, err := tx.GetClub(m.ClubID)
		if err != nil {
			return err
		}
		if club.ManagerID != userID {
			return ErrNotClubManager
		}
		m.IsPinned = !m.IsPinned
		msg = m
		return tx.SetMessagePinned(m.ID, m.IsPinned)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}
