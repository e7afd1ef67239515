package game

import (
	"time"

	"github.com/google/uuid"
)

// Command is the closed set of inputs the session state machine accepts.
// Adding a variant here forces Apply's switch to learn about it.
type Command interface{ isCommand() }

// Join adds a connection to the roster under the given nickname.
type Join struct {
	ConnID   uuid.UUID
	Nickname string
}

func (Join) isCommand() {}

// ReclaimHost transfers host authority to the issuing connection.
type ReclaimHost struct {
	ConnID uuid.UUID
}

func (ReclaimHost) isCommand() {}

// StartGame closes registration, assigns roles and begins the first round.
type StartGame struct {
	ConnID uuid.UUID
}

func (StartGame) isCommand() {}

// StartTimer arms the round countdown. Now is stamped by the caller so the
// state machine stays deterministic under test.
type StartTimer struct {
	ConnID uuid.UUID
	Now    time.Time
}

func (StartTimer) isCommand() {}

// TimerElapsed is injected by the session loop when the countdown runs out.
// Clients cannot send it.
type TimerElapsed struct{}

func (TimerElapsed) isCommand() {}

// NewRound re-deals roles and draws a fresh word without rebuilding the
// session.
type NewRound struct {
	ConnID uuid.UUID
}

func (NewRound) isCommand() {}

// Abort ends the session prematurely; the host leaving has the same effect.
type Abort struct {
	ConnID uuid.UUID
}

func (Abort) isCommand() {}

// Close dissolves the session once the group is done with it.
type Close struct {
	ConnID uuid.UUID
}

func (Close) isCommand() {}

// Leave removes a connection from the roster. Issued by the dispatcher on
// disconnect, never rejected.
type Leave struct {
	ConnID uuid.UUID
}

func (Leave) isCommand() {}
