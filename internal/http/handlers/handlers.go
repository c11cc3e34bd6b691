// Package handlers implements the HTTP transport surface of §6: a
// liveness string, the verification page and its token-submission
// callback, and the chat-platform push endpoint. Each handler is a thin
// adapter over the domain services; none of the admission/policy/relay
// business rules live here.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/forum-relay-bot/internal/admin"
	"github.com/tbourn/forum-relay-bot/internal/admission"
	"github.com/tbourn/forum-relay-bot/internal/boards"
	"github.com/tbourn/forum-relay-bot/internal/captcha"
	"github.com/tbourn/forum-relay-bot/internal/config"
	"github.com/tbourn/forum-relay-bot/internal/locks"
	"github.com/tbourn/forum-relay-bot/internal/policy"
	"github.com/tbourn/forum-relay-bot/internal/relay"
	"github.com/tbourn/forum-relay-bot/internal/session"
	"github.com/tbourn/forum-relay-bot/internal/store"
	"github.com/tbourn/forum-relay-bot/internal/telegram"
)

// Handlers wires every domain service the HTTP layer calls into.
type Handlers struct {
	cfg config.Config
	db  *gorm.DB

	client    *telegram.Client
	store     *store.Store
	captcha   *captcha.Verifier
	session   *session.Verifier
	admission *admission.Service
	policy    *policy.Service
	relay     *relay.Service
	boards    *boards.Service
	admin     *admin.Service
	dedup     *locks.UpdateDedup
}

// New constructs the Handlers bundle registered by RegisterRoutes.
func New(
	cfg config.Config,
	db *gorm.DB,
	client *telegram.Client,
	st *store.Store,
	cap *captcha.Verifier,
	sess *session.Verifier,
	adm *admission.Service,
	pol *policy.Service,
	rel *relay.Service,
	brd *boards.Service,
	console *admin.Service,
	dedup *locks.UpdateDedup,
) *Handlers {
	return &Handlers{
		cfg: cfg, db: db,
		client: client, store: st,
		captcha: cap, session: sess,
		admission: adm, policy: pol, relay: rel, boards: brd, admin: console,
		dedup: dedup,
	}
}

// Index implements "GET /": a plaintext liveness string (§6).
func (h *Handlers) Index(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
