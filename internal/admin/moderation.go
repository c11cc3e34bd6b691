package admin

import (
	"context"

	"github.com/tbourn/forum-relay-bot/internal/repo"
)

// HandleBlock implements the info card's "Block" button (§4.7): mark
// userID blocked and post their blacklist card. The block-keyword auto-ban
// path posts its card through the boards service directly, not through
// this method.
func (s *Service) HandleBlock(ctx context.Context, userID int64) error {
	if err := repo.SetBlocked(ctx, s.db, userID, true, false); err != nil {
		return err
	}
	u, err := repo.GetUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	return s.boards.PostBlacklistCard(ctx, u)
}

// HandleUnblock implements the blacklist card's "Unblock" button (§4.7):
// clear the blocked overlay, reset the violation count, and delete the
// card.
func (s *Service) HandleUnblock(ctx context.Context, userID int64) error {
	if err := repo.SetBlocked(ctx, s.db, userID, false, true); err != nil {
		return err
	}
	return s.boards.RemoveBlacklistCard(ctx, userID)
}

// HandlePinCard implements the info card's "Pin card" button: re-pin the
// user's existing card if one has been recorded.
func (s *Service) HandlePinCard(ctx context.Context, userID int64) error {
	u, err := repo.GetUser(ctx, s.db, userID)
	if err != nil {
		return err
	}
	cardMsgID := u.Info().CardMsgID
	if cardMsgID == 0 {
		return nil
	}
	return s.client.PinChatMessage(ctx, s.cfg.AdminGroup, cardMsgID)
}
