package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/forum-relay-bot/internal/captcha"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// submitTokenRequest is the body of "POST /submit_token" (§4.4/§6).
type submitTokenRequest struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	InitData string `json:"initData"`
}

// submitTokenResponse is always returned with HTTP 200 on success or 400
// on any verification failure (§4.4/§8 scenario 5).
type submitTokenResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SubmitToken implements "POST /submit_token" (§4.4): re-verify the
// captcha token against the active provider, re-verify initData against
// the chat platform's HMAC scheme, and advance the authoritative user
// (taken from initData, never from the display-only userId field) out of
// pending_turnstile.
func (h *Handlers) SubmitToken(c *gin.Context) {
	var req submitTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, submitTokenResponse{Success: false, Error: "malformed request body"})
		return
	}

	ctx := c.Request.Context()
	mode := captcha.Mode(h.store.Get(ctx, "captcha_mode"))
	secret, ok := h.secretFor(mode)
	if !ok {
		c.JSON(http.StatusBadRequest, submitTokenResponse{Success: false, Error: "captcha not configured"})
		return
	}

	captchaOK, err := h.captcha.Verify(ctx, mode, secret, req.Token, c.ClientIP())
	if err != nil {
		c.JSON(http.StatusBadRequest, submitTokenResponse{Success: false, Error: "captcha verification unavailable"})
		return
	}
	if !captchaOK {
		c.JSON(http.StatusBadRequest, submitTokenResponse{Success: false, Error: "captcha token rejected"})
		return
	}

	attestation, err := h.session.Verify(ctx, req.InitData)
	if err != nil {
		c.JSON(http.StatusBadRequest, submitTokenResponse{Success: false, Error: err.Error()})
		return
	}

	next, err := h.admission.AdvanceAfterCaptcha(ctx, attestation.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, submitTokenResponse{Success: false, Error: "internal error"})
		return
	}

	switch next {
	case domain.StatePendingVerification:
		question := h.store.Get(ctx, "qa_question")
		if question != "" {
			_, _ = h.client.SendMessage(ctx, attestation.UserID, question, telegram.SendMessageOpts{})
		}
	case domain.StateVerified:
		if u, uerr := repo.GetUser(ctx, h.db, attestation.UserID); uerr == nil {
			_ = h.relay.EnsureTopic(ctx, u)
		}
	}

	c.JSON(http.StatusOK, submitTokenResponse{Success: true})
}

func (h *Handlers) secretFor(mode captcha.Mode) (string, bool) {
	switch mode {
	case captcha.ModeTurnstile:
		return h.cfg.TurnstileSecretKey, h.cfg.TurnstileSecretKey != ""
	case captcha.ModeRecaptcha:
		return h.cfg.RecaptchaSecretKey, h.cfg.RecaptchaSecretKey != ""
	default:
		return "", false
	}
}
