package handlers

import (
	"context"
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/forum-relay-bot/internal/captcha"
)

// Verify implements "GET /verify?user_id=<id>" (§4.4): a static page that
// loads the chat platform's mini-app script to obtain initData and
// renders the active captcha widget, which posts {token, userId,
// initData} to /submit_token on success.
func (h *Handlers) Verify(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		Fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id is required")
		return
	}

	mode := captcha.Mode(h.store.Get(context.Background(), "captcha_mode"))
	siteKey, ok := h.siteKeyFor(mode)
	if !ok {
		Fail(c, http.StatusBadRequest, ErrCodeMissingCaptchaKey, fmt.Sprintf("no site key configured for captcha mode %q", mode))
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(renderVerifyPage(mode, siteKey, userID)))
}

func (h *Handlers) siteKeyFor(mode captcha.Mode) (string, bool) {
	switch mode {
	case captcha.ModeTurnstile:
		return h.cfg.TurnstileSiteKey, h.cfg.TurnstileSiteKey != ""
	case captcha.ModeRecaptcha:
		return h.cfg.RecaptchaSiteKey, h.cfg.RecaptchaSiteKey != ""
	default:
		return "", false
	}
}

// renderVerifyPage builds the minimal HTML/JS page: the chat platform's
// mini-app bootstrap script, the widget for mode, and a submit callback
// that posts to /submit_token and surfaces its error, if any.
func renderVerifyPage(mode captcha.Mode, siteKey, userID string) string {
	widgetScriptSrc, widgetMarkup, onSuccessCallback := widgetFor(mode, siteKey)
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Verification</title>
<script src="https://telegram.org/js/telegram-web-app.js"></script>
<script src="%s" async defer></script>
</head>
<body>
<div id="status">Please complete the verification below.</div>
%s
<script>
var tg = window.Telegram && window.Telegram.WebApp;
if (tg) { tg.ready(); }
function %s(token) {
  fetch("/submit_token", {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({
      token: token,
      userId: %q,
      initData: tg ? tg.initData : ""
    })
  }).then(function (r) { return r.json(); }).then(function (body) {
    document.getElementById("status").innerText = body.success ? "Verified. You can return to the chat." : ("Failed: " + body.error);
  });
}
</script>
</body>
</html>`, widgetScriptSrc, widgetMarkup, onSuccessCallback, html.EscapeString(userID))
}

// widgetFor returns the provider-specific script src, widget markup, and
// the name of the JS success callback the markup invokes with the solved
// token.
func widgetFor(mode captcha.Mode, siteKey string) (scriptSrc, markup, callback string) {
	switch mode {
	case captcha.ModeRecaptcha:
		return "https://www.google.com/recaptcha/api.js",
			fmt.Sprintf(`<div class="g-recaptcha" data-sitekey=%q data-callback="onVerified"></div>`, siteKey),
			"onVerified"
	default:
		return "https://challenges.cloudflare.com/turnstile/v0/api.js",
			fmt.Sprintf(`<div class="cf-turnstile" data-sitekey=%q data-callback="onVerified"></div>`, siteKey),
			"onVerified"
	}
}
