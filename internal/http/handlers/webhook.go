package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/forum-relay-bot/internal/admin"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// Webhook implements "POST /" (§6): parse the chat-platform update
// envelope, dispatch it on a detached task, and always answer 200 "OK"
// once the body has parsed, so the platform never sees a reason to
// redeliver. Only malformed JSON earns a 400.
func (h *Handlers) Webhook(c *gin.Context) {
	var update telegram.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed update")
		return
	}
	c.String(http.StatusOK, "OK")

	go h.processUpdate(update)
}

// processUpdate runs the rest of §7's propagation policy: the top of the
// update handler catches anything uncaught and logs it rather than let a
// panic escape the detached goroutine.
func (h *Handlers) processUpdate(update telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Int64("update_id", update.UpdateID).Msg("webhook: recovered panic processing update")
		}
	}()

	ctx := context.Background()
	if h.dedup.Seen(update.UpdateID) {
		return
	}

	switch {
	case update.CallbackQuery != nil:
		if err := h.handleCallbackQuery(ctx, update.CallbackQuery); err != nil {
			log.Warn().Err(err).Msg("webhook: callback query handling failed")
		}
	case update.Message != nil:
		if err := h.handleMessage(ctx, update.Message); err != nil {
			log.Warn().Err(err).Msg("webhook: message handling failed")
		}
	case update.EditedMessage != nil:
		if err := h.handleMessage(ctx, update.EditedMessage); err != nil {
			log.Warn().Err(err).Msg("webhook: edited message handling failed")
		}
	}
}

func (h *Handlers) handleMessage(ctx context.Context, m *telegram.Message) error {
	if m.Chat.Type == "private" {
		return h.handlePrivateMessage(ctx, m)
	}
	return h.admin.HandleGroupMessage(ctx, m)
}

// handlePrivateMessage dispatches an inbound DM per §4.3/§4.6: admin
// console input and commands take priority, then /start, then the
// admission-phase-gated flow for everyone else.
func (h *Handlers) handlePrivateMessage(ctx context.Context, m *telegram.Message) error {
	if m.From == nil || m.From.IsBot {
		return nil
	}
	userID := m.From.ID
	text := strings.TrimSpace(m.AllText())

	if h.cfg.IsPrimaryAdmin(userID) {
		if handled, reply, err := h.admin.ConsumeInput(ctx, userID, m); handled {
			if err != nil {
				return err
			}
			if reply != "" {
				_, _ = h.client.SendMessage(ctx, userID, reply, telegram.SendMessageOpts{ParseMode: "HTML"})
			}
			return nil
		}
		if text == "/admin" {
			t, kb := h.admin.Render(ctx, admin.PanelRoot)
			_, err := h.client.SendMessage(ctx, userID, t, telegram.SendMessageOpts{ParseMode: "HTML", Keyboard: kb})
			return err
		}
	}

	if text == "/start" {
		return h.handleStart(ctx, userID)
	}

	u, err := repo.GetOrCreateUser(ctx, h.db, userID)
	if err != nil {
		return err
	}
	if u.IsBlocked {
		return nil
	}
	if h.admission.IsAuthorizedAdmin(ctx, userID) {
		if err := h.admission.PromoteAdmin(ctx, userID); err != nil {
			return err
		}
		u.State = domain.StateVerified
	}

	switch u.State {
	case domain.StatePendingVerification:
		return h.handleQAAnswer(ctx, u, text)
	case domain.StateVerified:
		return h.relayVerified(ctx, u, m)
	default:
		// new or pending_turnstile: nothing to do until /start or the
		// verification page completes.
		return nil
	}
}

// handleStart implements the "/start" half of §4.3: self-unblock, then
// the one-shot transition out of "new" with its matching prompt.
func (h *Handlers) handleStart(ctx context.Context, userID int64) error {
	res, err := h.admission.Start(ctx, userID)
	if err != nil {
		return err
	}
	if res.Unblocked {
		if err := h.boards.RemoveBlacklistCard(ctx, userID); err != nil {
			log.Warn().Err(err).Int64("user_id", userID).Msg("webhook: failed to remove blacklist card on self-unblock")
		}
	}
	if !res.Transitioned {
		return nil
	}

	if err := h.sendWelcome(ctx, userID); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("webhook: failed to send welcome message")
	}

	switch res.NewState {
	case domain.StatePendingTurnstile:
		return h.sendVerifyPrompt(ctx, userID)
	case domain.StatePendingVerification:
		question := h.store.Get(ctx, "qa_question")
		if question == "" {
			return nil
		}
		_, err := h.client.SendMessage(ctx, userID, question, telegram.SendMessageOpts{})
		return err
	}
	return nil
}

// sendWelcome replays welcome_msg (§4.8): plain text, or the
// photo/video/animation asset captured by the admin console's welcome
// edit flow.
func (h *Handlers) sendWelcome(ctx context.Context, userID int64) error {
	raw := h.store.Get(ctx, "welcome_msg")
	if raw == "" {
		return nil
	}
	var asset domain.WelcomeAsset
	h.store.GetJSON(ctx, "welcome_msg", &asset)
	if asset.Type != "" {
		switch asset.Type {
		case "photo":
			return h.client.SendPhoto(ctx, userID, asset.FileID, asset.Caption)
		case "video":
			return h.client.SendVideo(ctx, userID, asset.FileID, asset.Caption)
		case "animation":
			return h.client.SendAnimation(ctx, userID, asset.FileID, asset.Caption)
		}
	}
	_, err := h.client.SendMessage(ctx, userID, raw, telegram.SendMessageOpts{})
	return err
}

// sendVerifyPrompt sends the verification web-app button linking to
// /verify (§4.4).
func (h *Handlers) sendVerifyPrompt(ctx context.Context, userID int64) error {
	url := h.cfg.WorkerURL + "/verify?user_id=" + strconv.FormatInt(userID, 10)
	kb := &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{{Text: "Verify", WebApp: &telegram.WebAppInfo{URL: url}}},
	}}
	_, err := h.client.SendMessage(ctx, userID, "Please verify to continue.", telegram.SendMessageOpts{Keyboard: kb})
	return err
}

// handleQAAnswer implements the pending_verification leg of §4.3: a
// correct answer silently promotes the user; an incorrect one leaves
// them in place for another attempt.
func (h *Handlers) handleQAAnswer(ctx context.Context, u *domain.User, answer string) error {
	_, err := h.admission.AdvanceAfterQA(ctx, u.UserID, answer)
	return err
}

// relayVerified implements §4.6: run the policy pipeline, then either
// reply/drop per its decision or hand off to the relay engine.
func (h *Handlers) relayVerified(ctx context.Context, u *domain.User, m *telegram.Message) error {
	d, err := h.policy.Evaluate(ctx, u.UserID, m)
	if err != nil {
		return err
	}

	if !d.ShouldRelay {
		if d.UserReply != "" {
			if _, err := h.client.SendMessage(ctx, u.UserID, d.UserReply, telegram.SendMessageOpts{}); err != nil {
				log.Warn().Err(err).Int64("user_id", u.UserID).Msg("webhook: policy reply failed")
			}
		}
		if d.JustBlocked {
			if fresh, ferr := repo.GetUser(ctx, h.db, u.UserID); ferr == nil {
				if err := h.boards.PostBlacklistCard(ctx, fresh); err != nil {
					log.Warn().Err(err).Int64("user_id", u.UserID).Msg("webhook: failed to post blacklist card")
				}
			}
		}
		return nil
	}

	if d.QuietHoursNotice != "" {
		if _, err := h.client.SendMessage(ctx, u.UserID, d.QuietHoursNotice, telegram.SendMessageOpts{}); err != nil {
			log.Warn().Err(err).Int64("user_id", u.UserID).Msg("webhook: quiet-hours notice failed")
		}
	}

	return h.relay.Relay(ctx, u, m)
}

// handleCallbackQuery dispatches an inline-button press by its leading
// namespace (§6's "namespaces in use"): config, inbox, note, block,
// unblock, pin_card.
func (h *Handlers) handleCallbackQuery(ctx context.Context, cq *telegram.CallbackQuery) error {
	if cq.From == nil {
		return nil
	}
	ns, rest, _ := strings.Cut(cq.Data, ":")

	switch ns {
	case "config":
		if !h.cfg.IsPrimaryAdmin(cq.From.ID) {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		text, kb, err := h.admin.HandleCallback(ctx, cq.From.ID, cq.Data)
		if err != nil {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		if cq.Message != nil {
			if err := h.client.EditMessageText(ctx, cq.Message.Chat.ID, cq.Message.MessageID, text, kb); err != nil {
				log.Warn().Err(err).Msg("webhook: admin console edit failed")
			}
		}
		return h.client.AnswerCallbackQuery(ctx, cq.ID, "")

	case "inbox":
		verb, idStr, _ := strings.Cut(rest, ":")
		if verb != "ack" {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		if err := h.boards.AckInbox(ctx, id); err != nil {
			log.Warn().Err(err).Int64("user_id", id).Msg("webhook: inbox ack failed")
		}
		return h.client.AnswerCallbackQuery(ctx, cq.ID, "")

	case "note":
		if !h.admission.IsAuthorizedAdmin(ctx, cq.From.ID) {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		verb, idStr, _ := strings.Cut(rest, ":")
		if verb != "edit" {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		if err := h.admin.RequestNoteEdit(ctx, cq.From.ID, id); err != nil {
			log.Warn().Err(err).Msg("webhook: note edit arming failed")
		}
		return h.client.AnswerCallbackQuery(ctx, cq.ID, "Send the new note in this chat, or /cancel.")

	case "block", "unblock", "pin_card":
		if !h.admission.IsAuthorizedAdmin(ctx, cq.From.ID) {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
		}
		var actionErr error
		switch ns {
		case "block":
			actionErr = h.admin.HandleBlock(ctx, id)
		case "unblock":
			actionErr = h.admin.HandleUnblock(ctx, id)
		case "pin_card":
			actionErr = h.admin.HandlePinCard(ctx, id)
		}
		if actionErr != nil {
			log.Warn().Err(actionErr).Str("namespace", ns).Int64("user_id", id).Msg("webhook: moderation action failed")
		}
		return h.client.AnswerCallbackQuery(ctx, cq.ID, "")

	default:
		return h.client.AnswerCallbackQuery(ctx, cq.ID, "")
	}
}
