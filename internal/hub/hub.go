// Package hub is the session registry: one loop that mints codes, creates
// sessions and resolves lookups. Owning the code map in a single goroutine
// makes uniqueness checks and registration one atomic step.
package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AffDk/spy-server/internal/game"
	"github.com/AffDk/spy-server/internal/random"
	"github.com/AffDk/spy-server/internal/session"
)

var ErrSessionNotFound = errors.New("session not found")
var ErrCodesExhausted = errors.New("could not mint a free session code")

const codeLength = 6
const codeCharset = "0123456789ABCDEF"
const codeAttempts = 5

type HubMsg interface{ isHubMsg() }

// CreateSession mints a code and starts a session with the requester as
// host. Duration is in minutes and validated against the public bounds.
type CreateSession struct {
	Duration int
	HostID   uuid.UUID
	Outbox   chan<- game.Event
	Reply    chan CreateResult
}

type CreateResult struct {
	Session *session.Session
	Code    string
	Err     error
}

// GetSession resolves a code. Reply receives nil for unknown codes.
type GetSession struct {
	Code  string
	Reply chan *session.Session
}

// RemoveSession forgets a code. Sessions send it through their release
// callback when they end.
type RemoveSession struct {
	Code string
}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}

type Hub struct {
	inbox    chan HubMsg
	sessions map[string]*session.Session
	words    game.WordSource
	ctx      context.Context
	cancel   context.CancelFunc
	log      *zap.Logger
}

func NewHub(parent context.Context, words game.WordSource, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*session.Session),
		words:    words,
		ctx:      ctx,
		cancel:   cancel,
		log:      log,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	defer h.cancel()
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				msg.Reply <- h.create(msg)

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // may be nil

			case RemoveSession:
				delete(h.sessions, msg.Code)
				h.log.Info("session removed",
					zap.String("code", msg.Code),
					zap.Int("sessions", len(h.sessions)))
			}
		}
	}
}

func (h *Hub) create(msg CreateSession) CreateResult {
	if err := game.ValidateDuration(msg.Duration); err != nil {
		return CreateResult{Err: err}
	}
	code, err := h.newCode()
	if err != nil {
		return CreateResult{Err: err}
	}

	g := game.New(code, time.Duration(msg.Duration)*time.Minute, msg.HostID, h.words)
	release := func() {
		select {
		case h.inbox <- RemoveSession{Code: code}:
		case <-h.ctx.Done():
		}
	}
	s := session.New(h.ctx, g, msg.Outbox, release, h.log.With(zap.String("code", code)))
	h.sessions[code] = s

	h.log.Info("session created",
		zap.String("code", code),
		zap.Int("durationMinutes", msg.Duration),
		zap.Int("sessions", len(h.sessions)))
	return CreateResult{Session: s, Code: code}
}

// newCode draws 6 uppercase hex digits, regenerating on collision with a
// live session. Registration happens in the same loop iteration, so a
// returned code cannot be taken by a concurrent create.
func (h *Hub) newCode() (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := make([]byte, codeLength)
		for i := range code {
			n, err := random.Index(len(codeCharset))
			if err != nil {
				return "", fmt.Errorf("draw session code: %w", err)
			}
			code[i] = codeCharset[n]
		}
		if _, taken := h.sessions[string(code)]; !taken {
			return string(code), nil
		}
		h.log.Warn("collision on code, regenerating", zap.String("code", string(code)))
	}
	return "", ErrCodesExhausted
}
