// Package session runs one game session as a message loop. All state lives
// inside the loop goroutine; the dispatcher, the registry and the round
// timer only ever talk to it through the inbox, so commands, departures and
// timer expiries are applied one at a time in arrival order.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AffDk/spy-server/internal/game"
)

type Msg interface{ isMsg() }

// Join registers a connection's outbox and seats it on the roster. On
// rejection the outbox only receives the error; it is not registered. A
// non-nil Reply (buffered by the caller) receives the outcome either way.
type Join struct {
	ConnID   uuid.UUID
	Nickname string
	Outbox   chan<- game.Event
	Reply    chan error
}

func (Join) isMsg() {}

// ReclaimHost registers the connection and hands it host authority. Reply
// works as on Join.
type ReclaimHost struct {
	ConnID uuid.UUID
	Outbox chan<- game.Event
	Reply  chan error
}

func (ReclaimHost) isMsg() {}

// FromClient carries any other client command. Outbox is where a rejection
// is reported; accepted commands answer through the registered channels.
type FromClient struct {
	ConnID uuid.UUID
	Cmd    game.Command
	Outbox chan<- game.Event
}

func (FromClient) isMsg() {}

// Leave detaches a connection, removing it from the roster. Idempotent; the
// dispatcher sends it on every disconnect.
type Leave struct{ ConnID uuid.UUID }

func (Leave) isMsg() {}

// GetView asks the loop for a race-free copy of observable state. Test-only.
type GetView struct{ Reply chan View }

func (GetView) isMsg() {}

type timerFired struct{ gen uint64 }

func (timerFired) isMsg() {}

// View mirrors the state fields tests assert on.
type View struct {
	Code             string
	Phase            game.Phase
	HostID           uuid.UUID
	Players          int
	Clients          int
	Spies            int
	SpyNicknames     int
	CurrentWord      string
	PreviousWord     string
	RegistrationOpen bool
}

// Session owns a Game and the connections attached to it.
type Session struct {
	inbox   chan Msg
	game    *game.Game
	clients map[uuid.UUID]chan<- game.Event

	// timerGen invalidates AfterFunc callbacks that were already in flight
	// when the timer was stopped or re-armed.
	timer    *time.Timer
	timerGen uint64

	ctx     context.Context
	cancel  context.CancelFunc
	release func()
	log     *zap.Logger
}

// New starts the session loop. The creator's outbox is registered up front
// so the host receives broadcasts before joining the roster. release is
// called exactly once when the session ends on its own (abort, close, host
// departure) so the registry can forget it.
func New(parent context.Context, g *game.Game, hostOutbox chan<- game.Event, release func(), log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)
	if release == nil {
		release = func() {}
	}

	s := &Session{
		inbox:   make(chan Msg, 64),
		game:    g,
		clients: map[uuid.UUID]chan<- game.Event{g.HostID: hostOutbox},
		ctx:     ctx,
		cancel:  cancel,
		release: release,
		log:     log,
	}

	go s.loop()
	return s
}

// Code returns the session code. Immutable, safe from any goroutine.
func (s *Session) Code() string { return s.game.Code }

// Deliver hands a message to the loop. Safe to call after teardown;
// messages to a dead session are dropped.
func (s *Session) Deliver(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

// Done is closed once the loop has exited and deliveries are dropped.
// Callers waiting on a Reply select on it so a teardown racing the message
// never strands them.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) loop() {
	defer s.cancel()
	for {
		select {
		case <-s.ctx.Done():
			s.stopTimer()
			return

		case m := <-s.inbox:
			if s.handle(m) {
				s.stopTimer()
				s.release()
				s.log.Info("session ended", zap.String("code", s.game.Code))
				return
			}
		}
	}
}

// handle processes one message and reports whether the session is finished.
func (s *Session) handle(m Msg) bool {
	switch msg := m.(type) {
	case Join:
		returning := s.game.KnownNickname(msg.Nickname)
		outs, err := s.game.Apply(game.Join{ConnID: msg.ConnID, Nickname: msg.Nickname})
		if msg.Reply != nil {
			msg.Reply <- err
		}
		if err != nil {
			s.reject(msg.ConnID, msg.Outbox, err)
			return false
		}
		s.clients[msg.ConnID] = msg.Outbox
		s.deliver(outs)
		s.log.Info("player joined",
			zap.String("code", s.game.Code),
			zap.String("conn", msg.ConnID.String()),
			zap.Bool("returning", returning))
		return false

	case ReclaimHost:
		s.clients[msg.ConnID] = msg.Outbox
		outs, err := s.game.Apply(game.ReclaimHost{ConnID: msg.ConnID})
		if msg.Reply != nil {
			msg.Reply <- err
		}
		if err != nil {
			s.reject(msg.ConnID, msg.Outbox, err)
			return false
		}
		s.deliver(outs)
		s.log.Info("host reclaimed",
			zap.String("code", s.game.Code),
			zap.String("conn", msg.ConnID.String()))
		return false

	case FromClient:
		outs, err := s.game.Apply(msg.Cmd)
		if err != nil {
			s.reject(msg.ConnID, msg.Outbox, err)
			return false
		}
		s.deliver(outs)
		return s.react(outs)

	case Leave:
		delete(s.clients, msg.ConnID)
		outs, err := s.game.Apply(game.Leave{ConnID: msg.ConnID})
		if err != nil {
			return false
		}
		s.deliver(outs)
		return s.react(outs)

	case timerFired:
		if msg.gen != s.timerGen {
			// Stopped or re-armed after this callback was already queued.
			return false
		}
		s.timer = nil
		outs, err := s.game.Apply(game.TimerElapsed{})
		if err != nil {
			return false
		}
		s.deliver(outs)
		return false

	case GetView:
		msg.Reply <- View{
			Code:             s.game.Code,
			Phase:            s.game.Phase,
			HostID:           s.game.HostID,
			Players:          len(s.game.Roster),
			Clients:          len(s.clients),
			Spies:            len(s.game.Spies),
			SpyNicknames:     len(s.game.SpyNicknames),
			CurrentWord:      s.game.CurrentWord,
			PreviousWord:     s.game.PreviousWord,
			RegistrationOpen: s.game.RegistrationOpen,
		}
		return false

	default:
		return false
	}
}

// react inspects applied events for the loop's side effects: arming or
// disarming the round timer and detecting the terminal broadcasts.
func (s *Session) react(outs []game.Outgoing) (done bool) {
	for _, o := range outs {
		switch o.Event.(type) {
		case game.TimerStarted:
			s.armTimer()
		case game.GameStarted:
			// Every deal path ends with this broadcast; a re-deal while a
			// countdown is running must not inherit the old deadline.
			s.stopTimer()
		case game.GameAborted, game.GameClosed:
			done = true
		}
	}
	return done
}

func (s *Session) armTimer() {
	s.stopTimer()
	gen := s.timerGen
	s.timer = time.AfterFunc(s.game.Duration, func() {
		s.Deliver(timerFired{gen: gen})
	})
}

// stopTimer disarms the countdown and bumps the generation so a callback
// that already fired cannot end a later round.
func (s *Session) stopTimer() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) deliver(outs []game.Outgoing) {
	for _, o := range outs {
		if o.To == uuid.Nil {
			for id, ch := range s.clients {
				s.send(id, ch, o.Event)
			}
			continue
		}
		if ch, ok := s.clients[o.To]; ok {
			s.send(o.To, ch, o.Event)
		}
	}
}

func (s *Session) reject(conn uuid.UUID, outbox chan<- game.Event, err error) {
	s.log.Debug("command rejected",
		zap.String("code", s.game.Code),
		zap.String("conn", conn.String()),
		zap.Error(err))
	s.send(conn, outbox, game.ErrorEvent{Message: err.Error()})
}

// send never blocks the loop. A connection that cannot keep up loses the
// event; everyone else still gets theirs.
func (s *Session) send(id uuid.UUID, ch chan<- game.Event, ev game.Event) {
	select {
	case ch <- ev:
	default:
		s.log.Warn("dropping event for slow connection",
			zap.String("code", s.game.Code),
			zap.String("conn", id.String()),
			zap.String("event", ev.Name()))
	}
}
