// Package admin implements the Admin Console of §4.8 — a hierarchical
// menu rendered through message edits, driven by a colon-separated
// callback-data grammar — and the admin reply path of §4.9, through
// which an authorized operator answers a bound user from inside that
// user's forum topic.
package admin

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/admission"
	"github.com/tbourn/forum-relay-bot/internal/boards"
	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// displayLocale is the locale used to capitalize admin-entered display
// strings (welcome_msg, qa_question). There is no per-deployment override
// today; English covers every case this module handles.
var displayLocale = language.English

// errInvalidCallback is returned for callback data that does not parse as
// the §6 grammar at all; callers should just answer the callback query
// with no visible effect.
var errInvalidCallback = errors.New("admin: invalid callback data")

// Service drives the admin console's menu state machine and the
// operator-to-user reply path. It holds the transport client directly
// (unlike the policy/admission services) because every console action
// ends in an edited or freshly sent chat-platform message.
type Service struct {
	client    *telegram.Client
	db        *gorm.DB
	store     *store.Store
	boards    *boards.Service
	admission *admission.Service
	cfg       config.Config
}

// New constructs an admin Service.
func New(client *telegram.Client, db *gorm.DB, st *store.Store, brd *boards.Service, adm *admission.Service, cfg config.Config) *Service {
	return &Service{client: client, db: db, store: st, boards: brd, admission: adm, cfg: cfg}
}

// titleCaser returns the locale-aware caser used to normalize the leading
// word of an admin-entered display string.
func (s *Service) titleCaser() cases.Caser {
	return cases.Title(displayLocale)
}

// Callback is a parsed "config:<verb>:<key>[:value]" callback payload
// (§4.8/§6).
type Callback struct {
	Namespace string
	Verb      string
	Key       string
	Value     string
}

// ParseCallback splits raw callback data into its up-to-four
// colon-separated parts (§6). ok is false for anything shorter than a
// namespace+verb pair.
func ParseCallback(data string) (cb Callback, ok bool) {
	parts := strings.SplitN(data, ":", 4)
	if len(parts) < 2 {
		return Callback{}, false
	}
	cb.Namespace = parts[0]
	cb.Verb = parts[1]
	if len(parts) > 2 {
		cb.Key = parts[2]
	}
	if len(parts) > 3 {
		cb.Value = parts[3]
	}
	return cb, true
}
