package game

import (
	"time"

	"github.com/google/uuid"
)

// Event is one outbound notification produced by Apply. Name is the wire
// event name; the value itself becomes the envelope's data payload.
type Event interface{ Name() string }

// Outgoing pairs an event with its audience. A zero To means every
// registered connection; otherwise the event is private to that connection.
type Outgoing struct {
	To    uuid.UUID
	Event Event
}

// broadcast wraps an event addressed to the whole session.
func broadcast(ev Event) Outgoing { return Outgoing{Event: ev} }

// private wraps an event addressed to a single connection.
func private(to uuid.UUID, ev Event) Outgoing { return Outgoing{To: to, Event: ev} }

type SessionCreated struct {
	SessionID string `json:"sessionId"`
}

func (SessionCreated) Name() string { return "sessionCreated" }

type JoinedSession struct {
	SessionID string `json:"sessionId"`
	Nickname  string `json:"nickname"`
	Phase     Phase  `json:"phase"`
}

func (JoinedSession) Name() string { return "joinedSession" }

// PlayerInfo is the roster entry shape shared by PlayersUpdated and
// SessionState. Entries are sorted by nickname so payloads are stable.
type PlayerInfo struct {
	Nickname string `json:"nickname"`
	IsHost   bool   `json:"isHost"`
}

type PlayersUpdated struct {
	Players []PlayerInfo `json:"players"`
	Count   int          `json:"count"`
}

func (PlayersUpdated) Name() string { return "playersUpdated" }

// RoleAssigned is always private. Word is only present for civilians; the
// spy learns nothing beyond the role itself.
type RoleAssigned struct {
	Role Role   `json:"role"`
	Word string `json:"word,omitempty"`
}

func (RoleAssigned) Name() string { return "roleAssigned" }

type GameStarted struct {
	Duration int `json:"duration"` // seconds
}

func (GameStarted) Name() string { return "gameStarted" }

type TimerStarted struct {
	Duration  int       `json:"duration"` // seconds
	StartTime time.Time `json:"startTime"`
}

func (TimerStarted) Name() string { return "timerStarted" }

// GameEnded reveals the spies by nickname. The list reflects role
// assignment at round start, so spies that disconnected mid-round are
// still named.
type GameEnded struct {
	Spies []string `json:"spies"`
}

func (GameEnded) Name() string { return "gameEnded" }

type NewRoundStarted struct{}

func (NewRoundStarted) Name() string { return "newRoundStarted" }

type GameAborted struct{}

func (GameAborted) Name() string { return "gameAborted" }

type GameClosed struct{}

func (GameClosed) Name() string { return "gameClosed" }

// SessionState is the full snapshot a reclaiming host receives to rebuild
// its view after a restart.
type SessionState struct {
	SessionID        string       `json:"sessionId"`
	Phase            Phase        `json:"phase"`
	Players          []PlayerInfo `json:"players"`
	Count            int          `json:"count"`
	Duration         int          `json:"duration"` // seconds
	RegistrationOpen bool         `json:"registrationOpen"`
	StartTime        *time.Time   `json:"startTime,omitempty"`
}

func (SessionState) Name() string { return "sessionState" }

// ErrorEvent carries a rejected command's reason back to its issuer.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) Name() string { return "error" }
