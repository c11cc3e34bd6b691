package admin

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// HandleGroupMessage implements the admin reply path of §4.9: a message
// from an authorized admin inside a topic bound to a user is either
// consumed as a note update (if an admin-input-note state is armed) or
// copied through to that user. Anything else — a non-admin sender, a
// bot, or a message outside a bound topic — is a no-op.
func (s *Service) HandleGroupMessage(ctx context.Context, m *telegram.Message) error {
	if m.From == nil || m.From.IsBot {
		return nil
	}
	if !s.admission.IsAuthorizedAdmin(ctx, m.From.ID) {
		return nil
	}
	topicID := m.MessageThread
	if topicID == 0 {
		return nil
	}

	if handled, err := s.consumeNoteInput(ctx, m.From.ID, m.AllText()); handled {
		return err
	}

	u, err := repo.GetUserByTopic(ctx, s.db, topicID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if _, err := s.client.CopyMessage(ctx, u.UserID, s.cfg.AdminGroup, m.MessageID, 0); err != nil {
		return err
	}

	if s.store.GetBool(ctx, "enable_admin_receipt") {
		_, _ = s.client.SendMessage(ctx, s.cfg.AdminGroup, "✅", telegram.SendMessageOpts{
			ThreadID:            topicID,
			ReplyToMessageID:    m.MessageID,
			DisableNotification: true,
		})
	}
	return nil
}
