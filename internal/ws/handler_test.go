package ws

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/AffDk/spy-server/internal/game"
	"github.com/AffDk/spy-server/internal/hub"
	"github.com/AffDk/spy-server/internal/session"
	"github.com/AffDk/spy-server/internal/types"
)

type staticWords struct{}

func (staticWords) PickNext(string) (string, error) { return "beach", nil }

func newTestHub(t *testing.T) *hub.Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return hub.NewHub(ctx, staticWords{}, zaptest.NewLogger(t))
}

// newTestClient builds a connection-less client; dispatch never touches the
// websocket, so the routing logic is testable without a network.
func newTestClient(t *testing.T, h *hub.Hub) *client {
	t.Helper()
	return &client{
		id:     uuid.New(),
		outbox: make(chan game.Event, outboxSize),
		hub:    h,
		log:    zaptest.NewLogger(t),
	}
}

// waitFor drains the outbox until an event with the wanted name arrives.
func waitFor(t *testing.T, ch <-chan game.Event, name string) game.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Name() == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
			return nil // unreachable
		}
	}
}

func createSession(t *testing.T, c *client) string {
	t.Helper()
	c.dispatch(types.ClientMessage{Event: types.EvtCreateSession, Duration: 10})
	created := waitFor(t, c.outbox, "sessionCreated").(game.SessionCreated)
	return created.SessionID
}

func joinAs(t *testing.T, c *client, code, nickname string) {
	t.Helper()
	c.dispatch(types.ClientMessage{Event: types.EvtJoinSession, SessionID: code, Nickname: nickname})
	waitFor(t, c.outbox, "joinedSession")
}

func sessionView(t *testing.T, s *session.Session) session.View {
	t.Helper()
	reply := make(chan session.View, 1)
	s.Deliver(session.GetView{Reply: reply})
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return session.View{} // unreachable
	}
}

func lookupCode(t *testing.T, h *hub.Hub, code string) *session.Session {
	t.Helper()
	reply := make(chan *session.Session, 1)
	h.Inbox() <- hub.GetSession{Code: code, Reply: reply}
	select {
	case s := <-reply:
		return s
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for session lookup")
		return nil // unreachable
	}
}

func TestDispatch_RejectedJoinKeepsCurrentSeat(t *testing.T) {
	h := newTestHub(t)

	first := newTestClient(t, h)
	codeA := createSession(t, first)
	joinAs(t, first, codeA, "anna")
	home := first.session

	second := newTestClient(t, h)
	codeB := createSession(t, second)
	joinAs(t, second, codeB, "ben")

	// The nickname collides in the target session, so the join is rejected
	// and the connection must stay seated in the session it hosts.
	first.dispatch(types.ClientMessage{Event: types.EvtJoinSession, SessionID: codeB, Nickname: "BEN"})
	waitFor(t, first.outbox, "error")

	if first.session != home {
		t.Fatalf("rejected join moved the connection off its session")
	}
	if got := lookupCode(t, h, codeA); got != home {
		t.Fatalf("origin session must survive the failed join elsewhere")
	}
	if v := sessionView(t, home); v.Players != 1 || v.Phase != game.PhaseLobby {
		t.Fatalf("origin session disturbed: players=%d phase=%s", v.Players, v.Phase)
	}
	if v := sessionView(t, lookupCode(t, h, codeB)); v.Players != 1 {
		t.Fatalf("target roster must be unchanged, got %d players", v.Players)
	}
}

func TestDispatch_AcceptedJoinMovesSeatAndLeavesOldSession(t *testing.T) {
	h := newTestHub(t)

	first := newTestClient(t, h)
	codeA := createSession(t, first)
	joinAs(t, first, codeA, "anna")

	second := newTestClient(t, h)
	codeB := createSession(t, second)
	joinAs(t, second, codeB, "ben")
	target := second.session

	joinAs(t, first, codeB, "anna")
	if first.session != target {
		t.Fatalf("accepted join must attach to the target session")
	}
	if v := sessionView(t, target); v.Players != 2 {
		t.Fatalf("target roster: got %d players, want 2", v.Players)
	}

	// Departing the origin session as its host aborts it, and the registry
	// forgets the code.
	deadline := time.Now().Add(time.Second)
	for lookupCode(t, h, codeA) != nil {
		if time.Now().After(deadline) {
			t.Fatalf("abandoned session still registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDispatch_ReclaimAttachesAndSnapshots(t *testing.T) {
	h := newTestHub(t)

	first := newTestClient(t, h)
	codeA := createSession(t, first)
	joinAs(t, first, codeA, "anna")

	second := newTestClient(t, h)
	second.dispatch(types.ClientMessage{Event: types.EvtReclaimHost, SessionID: codeA})

	state := waitFor(t, second.outbox, "sessionState").(game.SessionState)
	if state.SessionID != codeA {
		t.Fatalf("snapshot for wrong session: %q", state.SessionID)
	}
	if second.session == nil || second.session != first.session {
		t.Fatalf("reclaim must attach to the session it claimed")
	}
}

func TestDispatch_JoinUnknownCodeReportsAndStaysPut(t *testing.T) {
	h := newTestHub(t)

	first := newTestClient(t, h)
	codeA := createSession(t, first)
	joinAs(t, first, codeA, "anna")
	home := first.session

	first.dispatch(types.ClientMessage{Event: types.EvtJoinSession, SessionID: "FFFFFF", Nickname: "anna"})
	waitFor(t, first.outbox, "error")

	if first.session != home {
		t.Fatalf("unknown code must not move the connection")
	}
}
