// Package types defines the websocket wire shapes. Clients send flat
// event-tagged objects; the server answers with an event envelope whose
// data payload is the emitted event itself.
package types

// ClientMessage is every inbound frame. Fields beyond Event are read only
// by the operations that need them.
type ClientMessage struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Duration  int    `json:"duration,omitempty"` // minutes, createSession only
}

// Client event names accepted by the dispatcher.
const (
	EvtCreateSession = "createSession"
	EvtJoinSession   = "joinSession"
	EvtReclaimHost   = "reclaimHost"
	EvtStartGame     = "startGame"
	EvtStartTimer    = "startTimer"
	EvtNewRound      = "newRound"
	EvtAbortGame     = "abortGame"
	EvtCloseGame     = "closeGame"
)

// ServerMessage is every outbound frame.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
