package admin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tbourn/forum-relay-bot/internal/captcha"
	"github.com/tbourn/forum-relay-bot/internal/policy"
	"github.com/tbourn/forum-relay-bot/internal/repo"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// Panel names the seven root screens of the console (§4.8).
type Panel string

const (
	PanelRoot         Panel = "root"
	PanelBase         Panel = "base"
	PanelAutoReply    Panel = "auto_reply"
	PanelBlockKeyword Panel = "block_keyword"
	PanelFilters      Panel = "filters"
	PanelAdmins       Panel = "admins"
	PanelBackup       Panel = "backup"
	PanelQuietHours   Panel = "quiet_hours"
)

// filterSwitches lists the toggle keys shown on the Filters panel, in
// display order.
var filterSwitches = []struct {
	Key   string
	Label string
}{
	{"enable_forward_forwarding", "Forwarded messages"},
	{"enable_audio_forwarding", "Audio / voice"},
	{"enable_sticker_forwarding", "Stickers / GIFs"},
	{"enable_media_forwarding", "Photos / video / files"},
	{"enable_link_forwarding", "Links"},
	{"enable_text_forwarding", "Plain text"},
	{"enable_channel_forwarding", "Channel forwards"},
}

// panelForKey maps a scalar/boolean config key back to the panel it is
// edited from, so a toggle/edit/rotate_mode callback knows which screen
// to re-render.
func panelForKey(key string) Panel {
	switch key {
	case "welcome_msg", "qa_question", "qa_answer", "enable_qa_verify", "enable_verify", "captcha_mode":
		return PanelBase
	case "block_keywords", "block_threshold":
		return PanelBlockKeyword
	case "keyword_responses":
		return PanelAutoReply
	case "authorized_admins":
		return PanelAdmins
	case "backup_group_id":
		return PanelBackup
	case "busy_mode", "busy_msg":
		return PanelQuietHours
	}
	for _, f := range filterSwitches {
		if f.Key == key {
			return PanelFilters
		}
	}
	return PanelRoot
}

// Render builds the text and keyboard for panel, reading live values out
// of the config store (§4.8: "rendered through message edits").
func (s *Service) Render(ctx context.Context, panel Panel) (string, *telegram.InlineKeyboard) {
	switch panel {
	case PanelBase:
		return s.renderBase(ctx)
	case PanelAutoReply:
		return s.renderAutoReply(ctx)
	case PanelBlockKeyword:
		return s.renderBlockKeyword(ctx)
	case PanelFilters:
		return s.renderFilters(ctx)
	case PanelAdmins:
		return s.renderAdmins(ctx)
	case PanelBackup:
		return s.renderBackup(ctx)
	case PanelQuietHours:
		return s.renderQuietHours(ctx)
	default:
		return s.renderRoot(ctx)
	}
}

func navButton(label string, panel Panel) telegram.InlineButton {
	return telegram.InlineButton{Text: label, Data: fmt.Sprintf("config:menu:%s", panel)}
}

func (s *Service) renderRoot(ctx context.Context) (string, *telegram.InlineKeyboard) {
	total, blocked, verified, _ := repo.UserStats(ctx, s.db)
	text := fmt.Sprintf("<b>Admin Console</b>\nUsers: %d   Verified: %d   Blocked: %d", total, verified, blocked)
	kb := &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{navButton("Base", PanelBase), navButton("Auto-reply", PanelAutoReply)},
		{navButton("Block keywords", PanelBlockKeyword), navButton("Filters", PanelFilters)},
		{navButton("Admins", PanelAdmins), navButton("Backup board", PanelBackup)},
		{navButton("Quiet hours", PanelQuietHours)},
	}}
	return text, kb
}

func (s *Service) renderBase(ctx context.Context) (string, *telegram.InlineKeyboard) {
	welcome := s.store.Get(ctx, "welcome_msg")
	question := s.store.Get(ctx, "qa_question")
	answer := s.store.Get(ctx, "qa_answer")
	qaOn := s.store.GetBool(ctx, "enable_qa_verify")
	captchaOn := s.store.GetBool(ctx, "enable_verify")
	mode := captcha.Mode(s.store.Get(ctx, "captcha_mode"))

	text := fmt.Sprintf(
		"<b>Base</b>\nWelcome: %s\nQA question: %s\nQA answer: %s\nQA verify: %s\nCaptcha: %s / %s",
		welcome, question, answer, onOff(qaOn), onOff(captchaOn), mode,
	)
	kb := &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{{Text: "Edit welcome", Data: "config:edit:welcome_msg"}},
		{{Text: "Edit question", Data: "config:edit:qa_question"}, {Text: "Edit answer", Data: "config:edit:qa_answer"}},
		{{Text: "Toggle QA verify", Data: "config:toggle:enable_qa_verify"}},
		{{Text: "Rotate captcha mode", Data: "config:rotate_mode:captcha_mode"}},
		{navButton("« Back", PanelRoot)},
	}}
	return text, kb
}

func (s *Service) renderAutoReply(ctx context.Context) (string, *telegram.InlineKeyboard) {
	var rules []policy.Rule
	s.store.GetJSON(ctx, "keyword_responses", &rules)

	text := "<b>Auto-reply rules</b>"
	var rows [][]telegram.InlineButton
	for i, r := range rules {
		text += fmt.Sprintf("\n%d. %s → %s", i, r.Pattern, r.Response)
		rows = append(rows, []telegram.InlineButton{
			{Text: fmt.Sprintf("Delete #%d", i), Data: fmt.Sprintf("config:del:keyword_responses:%d", i)},
		})
	}
	if len(rules) == 0 {
		text += "\n(none)"
	}
	rows = append(rows,
		[]telegram.InlineButton{{Text: "Add rule", Data: "config:add:keyword_responses"}},
		[]telegram.InlineButton{{Text: "Clear all", Data: "config:cl:keyword_responses"}},
		[]telegram.InlineButton{navButton("« Back", PanelRoot)},
	)
	return text, &telegram.InlineKeyboard{InlineKeyboard: rows}
}

func (s *Service) renderBlockKeyword(ctx context.Context) (string, *telegram.InlineKeyboard) {
	var rules []policy.Rule
	s.store.GetJSON(ctx, "block_keywords", &rules)
	threshold := s.store.GetInt(ctx, "block_threshold", 5)

	text := fmt.Sprintf("<b>Block keywords</b>\nThreshold: %d", threshold)
	var rows [][]telegram.InlineButton
	for i, r := range rules {
		text += fmt.Sprintf("\n%d. %s", i, r.Pattern)
		rows = append(rows, []telegram.InlineButton{
			{Text: fmt.Sprintf("Delete #%d", i), Data: fmt.Sprintf("config:del:block_keywords:%d", i)},
		})
	}
	if len(rules) == 0 {
		text += "\n(none)"
	}
	rows = append(rows,
		[]telegram.InlineButton{{Text: "Add keyword", Data: "config:add:block_keywords"}},
		[]telegram.InlineButton{{Text: "Clear all", Data: "config:cl:block_keywords"}},
		[]telegram.InlineButton{{Text: "Edit threshold", Data: "config:edit:block_threshold"}},
		[]telegram.InlineButton{navButton("« Back", PanelRoot)},
	)
	return text, &telegram.InlineKeyboard{InlineKeyboard: rows}
}

func (s *Service) renderFilters(ctx context.Context) (string, *telegram.InlineKeyboard) {
	text := "<b>Filters</b>"
	var rows [][]telegram.InlineButton
	for _, f := range filterSwitches {
		on := s.store.GetBool(ctx, f.Key)
		rows = append(rows, []telegram.InlineButton{
			{Text: fmt.Sprintf("%s: %s", f.Label, onOff(on)), Data: fmt.Sprintf("config:toggle:%s", f.Key)},
		})
	}
	rows = append(rows, []telegram.InlineButton{navButton("« Back", PanelRoot)})
	return text, &telegram.InlineKeyboard{InlineKeyboard: rows}
}

func (s *Service) renderAdmins(ctx context.Context) (string, *telegram.InlineKeyboard) {
	var admins []int64
	s.store.GetJSON(ctx, "authorized_admins", &admins)

	text := "<b>Authorized admins</b>"
	var rows [][]telegram.InlineButton
	for i, id := range admins {
		text += fmt.Sprintf("\n%d. %d", i, id)
		rows = append(rows, []telegram.InlineButton{
			{Text: fmt.Sprintf("Remove #%d", i), Data: fmt.Sprintf("config:del:authorized_admins:%d", i)},
		})
	}
	if len(admins) == 0 {
		text += "\n(none)"
	}
	rows = append(rows,
		[]telegram.InlineButton{{Text: "Add admin", Data: "config:add:authorized_admins"}},
		[]telegram.InlineButton{navButton("« Back", PanelRoot)},
	)
	return text, &telegram.InlineKeyboard{InlineKeyboard: rows}
}

func (s *Service) renderBackup(ctx context.Context) (string, *telegram.InlineKeyboard) {
	backup := s.store.Get(ctx, "backup_group_id")
	if backup == "" {
		backup = "(none)"
	}
	unread := s.store.Get(ctx, "unread_topic_id")
	blocked := s.store.Get(ctx, "blocked_topic_id")

	text := fmt.Sprintf(
		"<b>Backup / notification boards</b>\nBackup group: %s\nInbox topic: %s\nBlacklist topic: %s",
		backup, topicOrUnset(unread), topicOrUnset(blocked),
	)
	kb := &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{{Text: "Edit backup group", Data: "config:edit:backup_group_id"}},
		{{Text: "Clear backup group", Data: "config:cl:backup_group_id"}},
		{navButton("« Back", PanelRoot)},
	}}
	return text, kb
}

func (s *Service) renderQuietHours(ctx context.Context) (string, *telegram.InlineKeyboard) {
	on := s.store.GetBool(ctx, "busy_mode")
	msg := s.store.Get(ctx, "busy_msg")
	text := fmt.Sprintf("<b>Quiet hours</b>\nActive: %s\nMessage: %s", onOff(on), msg)
	kb := &telegram.InlineKeyboard{InlineKeyboard: [][]telegram.InlineButton{
		{{Text: "Toggle quiet hours", Data: "config:toggle:busy_mode"}},
		{{Text: "Edit message", Data: "config:edit:busy_msg"}},
		{navButton("« Back", PanelRoot)},
	}}
	return text, kb
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func topicOrUnset(raw string) string {
	if raw == "" {
		return "(not created yet)"
	}
	return raw
}

func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
