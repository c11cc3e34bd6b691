package admin

import (
	"context"
	"fmt"

	"github.com/tbourn/forum-relay-bot/internal/captcha"
	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/policy"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// HandleCallback applies the effect of a parsed "config:" callback and
// returns the panel to render afterward (§4.8). Every verb except "edit"
// and "add" is a complete, self-contained mutation; those two instead
// arm the two-step input state and prompt the admin for their next
// private message.
func (s *Service) HandleCallback(ctx context.Context, adminUserID int64, data string) (text string, kb *telegram.InlineKeyboard, err error) {
	cb, ok := ParseCallback(data)
	if !ok || cb.Namespace != "config" {
		return "", nil, errInvalidCallback
	}

	switch cb.Verb {
	case "menu":
		_ = s.store.ClearAdminInputState(ctx, adminUserID)
		t, k := s.Render(ctx, Panel(cb.Key))
		return t, k, nil

	case "toggle":
		if err := s.toggle(ctx, cb.Key); err != nil {
			return "", nil, err
		}

	case "edit":
		if err := s.store.SetAdminInputState(ctx, domain.AdminInputState{
			AdminUserID: adminUserID, Action: domain.AdminInputValue, Key: cb.Key,
		}); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("Send the new value for <code>%s</code>, or /cancel.", cb.Key), nil, nil

	case "add":
		if err := s.store.SetAdminInputState(ctx, domain.AdminInputState{
			AdminUserID: adminUserID, Action: domain.AdminInputValue, Key: "add:" + cb.Key,
		}); err != nil {
			return "", nil, err
		}
		return addPrompt(cb.Key), nil, nil

	case "del":
		if err := s.delFromList(ctx, cb.Key, cb.Value); err != nil {
			return "", nil, err
		}

	case "cl":
		if err := s.clearKey(ctx, cb.Key); err != nil {
			return "", nil, err
		}

	case "rotate_mode":
		if err := s.rotateCaptchaMode(ctx); err != nil {
			return "", nil, err
		}

	default:
		return "", nil, errInvalidCallback
	}

	t, k := s.Render(ctx, panelForKey(cb.Key))
	return t, k, nil
}

func addPrompt(key string) string {
	if key == "keyword_responses" {
		return "Send <code>pattern===response</code>, or /cancel."
	}
	return fmt.Sprintf("Send the new value to add to <code>%s</code>, or /cancel.", key)
}

func (s *Service) toggle(ctx context.Context, key string) error {
	return s.store.Set(ctx, key, boolString(!s.store.GetBool(ctx, key)))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// delFromList removes the entry at the index encoded in value from the
// JSON list stored at key. authorized_admins is a []int64; the two rule
// lists are []policy.Rule. Out-of-range indices are ignored (§7e: a
// malformed admin input is silently ignored at match/action time).
func (s *Service) delFromList(ctx context.Context, key, value string) error {
	idx, ok := parseIndex(value)
	if !ok {
		return nil
	}
	switch key {
	case "authorized_admins":
		var admins []int64
		s.store.GetJSON(ctx, key, &admins)
		if idx >= len(admins) {
			return nil
		}
		admins = append(admins[:idx], admins[idx+1:]...)
		return s.store.SetJSON(ctx, key, admins)
	case "block_keywords", "keyword_responses":
		var rules []policy.Rule
		s.store.GetJSON(ctx, key, &rules)
		if idx >= len(rules) {
			return nil
		}
		rules = append(rules[:idx], rules[idx+1:]...)
		return s.store.SetJSON(ctx, key, rules)
	}
	return nil
}

// clearKey implements the "cl" verb: list keys reset to an empty array,
// scalar keys revert to their built-in default by deletion.
func (s *Service) clearKey(ctx context.Context, key string) error {
	switch key {
	case "authorized_admins", "block_keywords", "keyword_responses":
		return s.store.Set(ctx, key, "[]")
	default:
		return s.store.Delete(ctx, key)
	}
}

// rotateCaptchaMode implements §4.8's rotation: on+turnstile →
// on+recaptcha → off+(unchanged) → on+turnstile.
func (s *Service) rotateCaptchaMode(ctx context.Context) error {
	enabled := s.store.GetBool(ctx, "enable_verify")
	mode := captcha.Mode(s.store.Get(ctx, "captcha_mode"))
	nextEnabled, nextMode := captcha.NextRotation(enabled, mode)
	if err := s.store.Set(ctx, "enable_verify", boolString(nextEnabled)); err != nil {
		return err
	}
	return s.store.Set(ctx, "captcha_mode", string(nextMode))
}
