// Package captcha implements the captcha verifier of §4.2: a server-side
// call to the active provider's siteverify endpoint, reduced to a boolean
// outcome. Turnstile is called with a JSON body; reCAPTCHA with a
// form-encoded one, per §4.4 step 1.
package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Mode selects the active captcha provider. It also doubles as the
// persisted value of the "captcha_mode" config key, whose rotation is
// governed by the admin console (§4.8).
type Mode string

const (
	ModeOff       Mode = "off"
	ModeTurnstile Mode = "turnstile"
	ModeRecaptcha Mode = "recaptcha"
)

const (
	turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	recaptchaVerifyURL = "https://www.google.com/recaptcha/api/siteverify"
)

// Verifier verifies a widget token against the configured provider.
type Verifier struct {
	httpClient *http.Client

	turnstileURL string
	recaptchaURL string
}

// New constructs a Verifier.
func New() *Verifier {
	return &Verifier{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		turnstileURL: turnstileVerifyURL,
		recaptchaURL: recaptchaVerifyURL,
	}
}

type siteverifyResult struct {
	Success bool `json:"success"`
}

// VerifyTurnstile posts token/secret as JSON to the Turnstile siteverify
// endpoint (§4.4 step 1).
func (v *Verifier) VerifyTurnstile(ctx context.Context, secret, token, remoteIP string) (bool, error) {
	payload, err := json.Marshal(map[string]string{
		"secret":   secret,
		"response": token,
		"remoteip": remoteIP,
	})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.turnstileURL, strings.NewReader(string(payload)))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	return v.doSiteverify(req)
}

// VerifyRecaptcha posts token/secret form-encoded to the reCAPTCHA
// siteverify endpoint (§4.4 step 1).
func (v *Verifier) VerifyRecaptcha(ctx context.Context, secret, token, remoteIP string) (bool, error) {
	form := url.Values{
		"secret":   {secret},
		"response": {token},
		"remoteip": {remoteIP},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.recaptchaURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return v.doSiteverify(req)
}

func (v *Verifier) doSiteverify(req *http.Request) (bool, error) {
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var out siteverifyResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Success, nil
}

// Verify dispatches to the provider named by mode. ModeOff is never
// expected to reach here; callers check it before calling Verify.
func (v *Verifier) Verify(ctx context.Context, mode Mode, secret, token, remoteIP string) (bool, error) {
	switch mode {
	case ModeTurnstile:
		return v.VerifyTurnstile(ctx, secret, token, remoteIP)
	case ModeRecaptcha:
		return v.VerifyRecaptcha(ctx, secret, token, remoteIP)
	default:
		return false, nil
	}
}

// NextRotation implements the captcha-mode rotation of §4.8:
// on+turnstile → on+recaptcha → off+(unchanged) → on+turnstile.
func NextRotation(enabled bool, mode Mode) (nextEnabled bool, nextMode Mode) {
	switch {
	case enabled && mode == ModeTurnstile:
		return true, ModeRecaptcha
	case enabled && mode == ModeRecaptcha:
		return false, mode
	default:
		return true, ModeTurnstile
	}
}
