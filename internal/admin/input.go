package admin

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/forum-relay-bot/internal/domain"
	"github.com/tbourn/forum-relay-bot/internal/policy"
	"github.com/tbourn/forum-relay-bot/internal/ruleindex"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// addDelimiter separates the pattern from the response in a
// keyword_responses "add" payload (§4.8).
const addDelimiter = "==="

// ConsumeInput applies the pending two-step input state for adminUserID,
// if any, against m (§4.8). handled is false when no input state was
// pending, meaning the caller should treat m as an ordinary message.
func (s *Service) ConsumeInput(ctx context.Context, adminUserID int64, m *telegram.Message) (handled bool, reply string, err error) {
	st, ok := s.store.GetAdminInputState(ctx, adminUserID)
	if !ok || st.Action != domain.AdminInputValue {
		return false, "", nil
	}

	text := strings.TrimSpace(m.AllText())
	if text == "/cancel" {
		_ = s.store.ClearAdminInputState(ctx, adminUserID)
		return true, "Cancelled.", nil
	}

	var retry bool
	if listKey, isAdd := strings.CutPrefix(st.Key, "add:"); isAdd {
		reply, retry, err = s.consumeAdd(ctx, listKey, text)
	} else {
		reply, err = s.consumeEdit(ctx, st.Key, m, text)
	}
	if err != nil {
		return true, "", err
	}
	if retry {
		// Structurally invalid input (§7e): report it and leave the input
		// state armed so the admin can resend.
		return true, reply, nil
	}

	_ = s.store.ClearAdminInputState(ctx, adminUserID)
	return true, reply, nil
}

func (s *Service) consumeEdit(ctx context.Context, key string, m *telegram.Message, text string) (string, error) {
	if key == "welcome_msg" {
		return s.consumeWelcomeEdit(ctx, m, text)
	}
	if key == "qa_question" {
		text = s.normalizeDisplayText(text)
	}
	if err := s.store.Set(ctx, key, text); err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved %s.", key), nil
}

// normalizeDisplayText capitalizes the leading word of an admin-entered
// display string with the locale-aware title caser, leaving the rest of
// the text (including embedded newlines) untouched.
func (s *Service) normalizeDisplayText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}
	r, size := utf8.DecodeRuneInString(text)
	return s.titleCaser().String(string(r)) + text[size:]
}

// consumeWelcomeEdit implements the photo/video/animation encoding carve-out
// of §4.8: an attachment is stored as {type, file_id, caption} instead of
// plain text.
func (s *Service) consumeWelcomeEdit(ctx context.Context, m *telegram.Message, text string) (string, error) {
	var asset domain.WelcomeAsset
	switch {
	case len(m.Photo) > 0:
		asset = domain.WelcomeAsset{Type: "photo", FileID: m.Photo[len(m.Photo)-1].FileID, Caption: m.Caption}
	case m.Video != nil:
		asset = domain.WelcomeAsset{Type: "video", FileID: m.Video.FileID, Caption: m.Caption}
	case m.Animation != nil:
		asset = domain.WelcomeAsset{Type: "animation", FileID: m.Animation.FileID, Caption: m.Caption}
	default:
		if err := s.store.Set(ctx, "welcome_msg", s.normalizeDisplayText(text)); err != nil {
			return "", err
		}
		return "Saved welcome_msg.", nil
	}
	if err := s.store.SetJSON(ctx, "welcome_msg", asset); err != nil {
		return "", err
	}
	return "Saved welcome_msg (" + asset.Type + ").", nil
}

// consumeAdd handles an "add:<listKey>" input. retry is true when text is
// structurally invalid for listKey and the admin should resend rather
// than have the input state cleared (§7e).
func (s *Service) consumeAdd(ctx context.Context, listKey, text string) (reply string, retry bool, err error) {
	switch listKey {
	case "keyword_responses":
		pattern, response, found := strings.Cut(text, addDelimiter)
		if !found {
			return "Missing '" + addDelimiter + "' delimiter between pattern and response. Send again, or /cancel.", true, nil
		}
		pattern, response = strings.TrimSpace(pattern), strings.TrimSpace(response)
		reply, err = s.addRule(ctx, listKey, policy.Rule{Pattern: pattern, Response: response})
		return reply, false, err

	case "block_keywords":
		reply, err = s.addRule(ctx, listKey, policy.Rule{Pattern: text})
		return reply, false, err

	case "authorized_admins":
		id, perr := strconv.ParseInt(text, 10, 64)
		if perr != nil {
			return "Not a valid user id. Send again, or /cancel.", true, nil
		}
		var admins []int64
		s.store.GetJSON(ctx, listKey, &admins)
		admins = append(admins, id)
		if err := s.store.SetJSON(ctx, listKey, admins); err != nil {
			return "", false, err
		}
		return fmt.Sprintf("Added admin %d.", id), false, nil
	}
	return "", false, nil
}

// addRule appends rule to the named rule list, warning (non-blocking,
// SPEC_FULL §3) if an existing pattern is a near-duplicate.
func (s *Service) addRule(ctx context.Context, listKey string, rule policy.Rule) (string, error) {
	var rules []policy.Rule
	s.store.GetJSON(ctx, listKey, &rules)

	existing := make([]string, len(rules))
	for i, r := range rules {
		existing[i] = r.Pattern
	}
	warning := ""
	if match, ok := ruleindex.FindNearDuplicate(rule.Pattern, existing); ok {
		warning = fmt.Sprintf(" Warning: similar to existing rule %q (%.0f%% match).", match.Existing, match.Score*100)
	}

	rules = append(rules, rule)
	if err := s.store.SetJSON(ctx, listKey, rules); err != nil {
		return "", err
	}
	return "Added rule." + warning, nil
}
