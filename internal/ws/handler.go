// Package ws turns websocket connections into session commands. One handler
// goroutine reads frames and routes them; a writer goroutine drains the
// connection's outbox. Neither ever touches session state directly.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AffDk/spy-server/internal/game"
	"github.com/AffDk/spy-server/internal/hub"
	"github.com/AffDk/spy-server/internal/session"
	"github.com/AffDk/spy-server/internal/types"
)

const writeTimeout = 3 * time.Second
const outboxSize = 32

func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			log.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		id := uuid.New()
		c := &client{
			id:     id,
			conn:   conn,
			outbox: make(chan game.Event, outboxSize),
			hub:    h,
			log:    log.With(zap.String("conn", id.String())),
		}
		c.run(r.Context())
	}
}

// client is one websocket connection. The id outlives joins and leaves; it
// is how sessions recognize the connection across commands.
type client struct {
	id      uuid.UUID
	conn    *websocket.Conn
	outbox  chan game.Event
	hub     *hub.Hub
	session *session.Session // attached session, nil until create/join/reclaim
	log     *zap.Logger
}

func (c *client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writeLoop(ctx)

	// Whatever ends the read loop, the session must see the departure.
	defer func() {
		if c.session != nil {
			c.session.Deliver(session.Leave{ConnID: c.id})
		}
	}()

	// No read deadline: players legitimately idle for a whole round.
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					c.log.Debug("read ended", zap.Error(err))
				}
			}
			return
		}

		var cm types.ClientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			c.reply(game.ErrorEvent{Message: "malformed message"})
			continue
		}
		c.dispatch(cm)
	}
}

func (c *client) dispatch(m types.ClientMessage) {
	switch m.Event {
	case types.EvtCreateSession:
		c.createSession(m)

	case types.EvtJoinSession:
		s, ok := c.lookup(m.SessionID)
		if !ok {
			return
		}
		reply := make(chan error, 1)
		s.Deliver(session.Join{ConnID: c.id, Nickname: m.Nickname, Outbox: c.outbox, Reply: reply})
		c.attachIfAccepted(s, reply)

	case types.EvtReclaimHost:
		s, ok := c.lookup(m.SessionID)
		if !ok {
			return
		}
		reply := make(chan error, 1)
		s.Deliver(session.ReclaimHost{ConnID: c.id, Outbox: c.outbox, Reply: reply})
		c.attachIfAccepted(s, reply)

	default:
		cmd, ok := c.toCommand(m)
		if !ok {
			c.reply(game.ErrorEvent{Message: "unknown event"})
			return
		}
		s, ok := c.lookup(m.SessionID)
		if !ok {
			return
		}
		s.Deliver(session.FromClient{ConnID: c.id, Cmd: cmd, Outbox: c.outbox})
	}
}

// toCommand maps the host/round operations onto state machine commands.
// createSession, joinSession and reclaimHost attach connections and are
// handled separately.
func (c *client) toCommand(m types.ClientMessage) (game.Command, bool) {
	switch m.Event {
	case types.EvtStartGame:
		return game.StartGame{ConnID: c.id}, true
	case types.EvtStartTimer:
		return game.StartTimer{ConnID: c.id, Now: time.Now()}, true
	case types.EvtNewRound:
		return game.NewRound{ConnID: c.id}, true
	case types.EvtAbortGame:
		return game.Abort{ConnID: c.id}, true
	case types.EvtCloseGame:
		return game.Close{ConnID: c.id}, true
	default:
		return nil, false
	}
}

func (c *client) createSession(m types.ClientMessage) {
	reply := make(chan hub.CreateResult, 1)
	c.hub.Inbox() <- hub.CreateSession{
		Duration: m.Duration,
		HostID:   c.id,
		Outbox:   c.outbox,
		Reply:    reply,
	}
	res := <-reply
	if res.Err != nil {
		c.reply(game.ErrorEvent{Message: res.Err.Error()})
		return
	}

	c.detach()
	c.session = res.Session
	c.reply(game.SessionCreated{SessionID: res.Code})
	c.log.Info("session created", zap.String("code", res.Code))
}

// attachIfAccepted waits for the session's verdict on a seating message and
// attaches only on acceptance, so a rejected join leaves the connection
// seated wherever it already was. Rejections reach the outbox from the
// session itself; a session that tears down first simply never seats us.
func (c *client) attachIfAccepted(s *session.Session, reply <-chan error) {
	select {
	case err := <-reply:
		if err != nil {
			return
		}
	case <-s.Done():
		return
	}
	c.attach(s)
}

// attach binds the connection to the session that accepted it, departing
// any previous one.
func (c *client) attach(s *session.Session) {
	if c.session == s {
		return
	}
	c.detach()
	c.session = s
}

func (c *client) detach() {
	if c.session != nil {
		c.session.Deliver(session.Leave{ConnID: c.id})
		c.session = nil
	}
}

// lookup resolves a session code, reporting the failure straight to this
// connection so callers can simply bail.
func (c *client) lookup(code string) (*session.Session, bool) {
	reply := make(chan *session.Session, 1)
	c.hub.Inbox() <- hub.GetSession{Code: code, Reply: reply}
	s := <-reply
	if s == nil {
		c.reply(game.ErrorEvent{Message: hub.ErrSessionNotFound.Error()})
		return nil, false
	}
	return s, true
}

// reply queues an event for this connection only.
func (c *client) reply(ev game.Event) {
	select {
	case c.outbox <- ev:
	default:
		c.log.Warn("dropping reply for slow connection", zap.String("event", ev.Name()))
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.outbox:
			payload, err := json.Marshal(types.ServerMessage{Event: ev.Name(), Data: ev})
			if err != nil {
				c.log.Error("marshal event", zap.String("event", ev.Name()), zap.Error(err))
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				// The read loop will observe the broken connection and
				// detach; nothing useful can be written anymore.
				return
			}
		}
	}
}
