package relay

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// postInfoCard implements §4.5.5: a pinned HTML identity card with
// operator action buttons, sent the first time a topic has no recorded
// card. Pin failure is best-effort and must never fail relay.
func (s *Service) postInfoCard(ctx context.Context, u *domain.User, topicID int64) {
	info := u.Info()
	text := infoCardText(u, info)
	keyboard := infoCardKeyboard(u.UserID)

	msg, err := s.client.SendMessage(ctx, s.cfg.AdminGroup, text, telegram.SendMessageOpts{
		ThreadID:  topicID,
		ParseMode: "HTML",
		Keyboard:  keyboard,
	})
	if err != nil {
		log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: info card send failed")
		return
	}

	if err := repo.MergeUserInfo(ctx, s.db, u.UserID, domain.UserInfo{CardMsgID: msg.MessageID}); err != nil {
		log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: failed to record info card id")
		return
	}

	if err := s.client.PinChatMessage(ctx, s.cfg.AdminGroup, msg.MessageID); err != nil {
		log.Warn().Err(err).Int64("user_id", u.UserID).Msg("relay: best-effort info card pin failed")
	}
}

func infoCardText(u *domain.User, info domain.UserInfo) string {
	name := info.DisplayName
	if name == "" {
		name = fmt.Sprintf("User %d", u.UserID)
	}
	text := fmt.Sprintf("<b>%s</b>\nID: <code>%d</code>", html.EscapeString(name), u.UserID)
	if info.Username != "" {
		text += fmt.Sprintf("\n@%s", html.EscapeString(info.Username))
	}
	if info.Note != "" {
		text += fmt.Sprintf("\nNote: %s", html.EscapeString(info.Note))
	}
	return text
}

func infoCardKeyboard(userID int64) *telegram.InlineKeyboard {
	return &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{
			{Text: "Open profile", URL: fmt.Sprintf("tg://user?id=%d", userID)},
			{Text: "Block", Data: fmt.Sprintf("block:%d", userID)},
		},
		{
			{Text: "Edit note", Data: fmt.Sprintf("note:edit:%d", userID)},
			{Text: "Pin card", Data: fmt.Sprintf("pin_card:%d", userID)},
		},
	}}
}
