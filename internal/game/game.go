// Package game holds the session state machine. It is pure: Apply consumes
// one command and either mutates the state completely, returning the
// notifications to deliver, or returns an error with the state untouched.
// All concurrency lives in the session loop that owns a Game.
package game

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/AffDk/spy-server/internal/random"
)

var ErrInvalidDuration = errors.New("duration must be between 5 and 60 minutes")
var ErrInvalidNickname = errors.New("nickname must be 1-20 printable characters")
var ErrDuplicateNickname = errors.New("nickname already taken")
var ErrRegistrationClosed = errors.New("registration is closed")
var ErrTooFewPlayers = errors.New("need at least 4 players to start")
var ErrNotHost = errors.New("only the host can do that")
var ErrRoundNotActive = errors.New("no active round")

type Phase string

const (
	PhaseLobby  Phase = "lobby"
	PhaseActive Phase = "active"
	PhaseEnded  Phase = "ended"
)

type Role string

const (
	RoleSpy      Role = "spy"
	RoleCivilian Role = "civilian"
)

const (
	MinPlayers          = 4
	MaxNicknameLength   = 20
	MinDurationMinutes  = 5
	MaxDurationMinutes  = 60
	spiesPerPlayerRatio = 3 // one spy per three players, minimum one
)

// ValidateDuration checks a requested round length in minutes against the
// public bounds.
func ValidateDuration(minutes int) error {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return ErrInvalidDuration
	}
	return nil
}

// WordSource supplies round words. *words.Supplier satisfies it.
type WordSource interface {
	PickNext(exclude string) (string, error)
}

// Player is one roster entry.
type Player struct {
	Nickname string
	IsHost   bool
}

// Game is the state of one session. Fields are exported for the session
// loop and tests; nothing outside the owning loop may touch a live Game.
type Game struct {
	Code     string
	Duration time.Duration
	HostID   uuid.UUID

	Roster map[uuid.UUID]*Player
	Spies  map[uuid.UUID]struct{}

	// Nickname history survives disconnects: KnownNicknames records everyone
	// who ever joined, SpyNicknames freezes the spy set of the current round
	// so the end-of-round reveal names players that have since left.
	KnownNicknames map[string]struct{}
	SpyNicknames   map[string]struct{}

	CurrentWord  string
	PreviousWord string

	Phase            Phase
	RegistrationOpen bool
	RoundStartedAt   time.Time

	words WordSource
}

// New returns a Game in the lobby phase with an empty roster. The creator
// holds host authority but still joins like any other player.
func New(code string, duration time.Duration, host uuid.UUID, words WordSource) *Game {
	return &Game{
		Code:             code,
		Duration:         duration,
		HostID:           host,
		Roster:           make(map[uuid.UUID]*Player),
		Spies:            make(map[uuid.UUID]struct{}),
		KnownNicknames:   make(map[string]struct{}),
		SpyNicknames:     make(map[string]struct{}),
		Phase:            PhaseLobby,
		RegistrationOpen: true,
		words:            words,
	}
}

// Apply runs one command to completion. On error the state is exactly as it
// was before the call.
func (g *Game) Apply(cmd Command) ([]Outgoing, error) {
	switch c := cmd.(type) {
	case Join:
		return g.join(c)
	case ReclaimHost:
		return g.reclaimHost(c)
	case StartGame:
		return g.startGame(c)
	case StartTimer:
		return g.startTimer(c)
	case TimerElapsed:
		return g.timerElapsed()
	case NewRound:
		return g.newRound(c)
	case Abort:
		return g.requireHost(c.ConnID, GameAborted{})
	case Close:
		return g.requireHost(c.ConnID, GameClosed{})
	case Leave:
		return g.leave(c)
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

// KnownNickname reports whether the nickname (trimmed, case-insensitive)
// has ever been on this session's roster.
func (g *Game) KnownNickname(nickname string) bool {
	want := strings.ToLower(strings.TrimSpace(nickname))
	for known := range g.KnownNicknames {
		if strings.ToLower(known) == want {
			return true
		}
	}
	return false
}

func (g *Game) join(c Join) ([]Outgoing, error) {
	if !g.RegistrationOpen {
		return nil, ErrRegistrationClosed
	}
	nickname := strings.TrimSpace(c.Nickname)
	if !validNickname(nickname) {
		return nil, ErrInvalidNickname
	}
	// Uniqueness only counts connected players; a disconnected player's
	// nickname is free to take again.
	for id, p := range g.Roster {
		if id != c.ConnID && strings.EqualFold(p.Nickname, nickname) {
			return nil, ErrDuplicateNickname
		}
	}

	g.Roster[c.ConnID] = &Player{
		Nickname: nickname,
		IsHost:   c.ConnID == g.HostID,
	}
	g.KnownNicknames[nickname] = struct{}{}

	return []Outgoing{
		private(c.ConnID, JoinedSession{SessionID: g.Code, Nickname: nickname, Phase: g.Phase}),
		broadcast(g.playersUpdated()),
	}, nil
}

func (g *Game) reclaimHost(c ReclaimHost) ([]Outgoing, error) {
	g.HostID = c.ConnID
	for id, p := range g.Roster {
		p.IsHost = id == c.ConnID
	}
	return []Outgoing{private(c.ConnID, g.snapshot())}, nil
}

func (g *Game) startGame(c StartGame) ([]Outgoing, error) {
	if c.ConnID != g.HostID {
		return nil, ErrNotHost
	}
	if len(g.Roster) < MinPlayers {
		return nil, ErrTooFewPlayers
	}
	outs, err := g.assignRoles()
	if err != nil {
		return nil, err
	}
	return append(outs, broadcast(GameStarted{Duration: g.durationSeconds()})), nil
}

func (g *Game) startTimer(c StartTimer) ([]Outgoing, error) {
	if c.ConnID != g.HostID {
		return nil, ErrNotHost
	}
	if g.Phase != PhaseActive {
		return nil, ErrRoundNotActive
	}
	g.RoundStartedAt = c.Now
	return []Outgoing{
		broadcast(TimerStarted{Duration: g.durationSeconds(), StartTime: c.Now}),
	}, nil
}

func (g *Game) timerElapsed() ([]Outgoing, error) {
	if g.Phase != PhaseActive {
		// Stale fire; the round was already ended or re-dealt.
		return nil, nil
	}
	g.Phase = PhaseEnded
	return []Outgoing{broadcast(GameEnded{Spies: g.spyNames()})}, nil
}

func (g *Game) newRound(c NewRound) ([]Outgoing, error) {
	if c.ConnID != g.HostID {
		return nil, ErrNotHost
	}
	outs, err := g.assignRoles()
	if err != nil {
		return nil, err
	}
	all := make([]Outgoing, 0, len(outs)+2)
	all = append(all, broadcast(NewRoundStarted{}))
	all = append(all, outs...)
	all = append(all, broadcast(GameStarted{Duration: g.durationSeconds()}))
	return all, nil
}

func (g *Game) requireHost(conn uuid.UUID, ev Event) ([]Outgoing, error) {
	if conn != g.HostID {
		return nil, ErrNotHost
	}
	return []Outgoing{broadcast(ev)}, nil
}

func (g *Game) leave(c Leave) ([]Outgoing, error) {
	if c.ConnID == g.HostID {
		// The host going away tears the session down, same as an abort.
		return []Outgoing{broadcast(GameAborted{})}, nil
	}
	if _, ok := g.Roster[c.ConnID]; !ok {
		return nil, nil
	}
	delete(g.Roster, c.ConnID)
	delete(g.Spies, c.ConnID)
	return []Outgoing{broadcast(g.playersUpdated())}, nil
}

// assignRoles is the shared dealing step of StartGame and NewRound: draw the
// next word, rebuild the spy sets from the current roster, tell every player
// their role. The word draw comes first so a failed draw changes nothing.
func (g *Game) assignRoles() ([]Outgoing, error) {
	word, err := g.words.PickNext(g.CurrentWord)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(g.Roster))
	for id := range g.Roster {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	shuffled, err := random.Shuffle(ids)
	if err != nil {
		return nil, err
	}

	spyCount := len(ids) / spiesPerPlayerRatio
	if spyCount < 1 {
		spyCount = 1
	}
	if spyCount > len(ids) {
		spyCount = len(ids)
	}

	g.PreviousWord = g.CurrentWord
	g.CurrentWord = word
	g.Phase = PhaseActive
	g.RegistrationOpen = false
	g.RoundStartedAt = time.Time{}
	g.Spies = make(map[uuid.UUID]struct{}, spyCount)
	g.SpyNicknames = make(map[string]struct{}, spyCount)
	for _, id := range shuffled[:spyCount] {
		g.Spies[id] = struct{}{}
		g.SpyNicknames[g.Roster[id].Nickname] = struct{}{}
	}

	outs := make([]Outgoing, 0, len(ids))
	for _, id := range ids {
		if _, spy := g.Spies[id]; spy {
			outs = append(outs, private(id, RoleAssigned{Role: RoleSpy}))
		} else {
			outs = append(outs, private(id, RoleAssigned{Role: RoleCivilian, Word: word}))
		}
	}
	return outs, nil
}

func (g *Game) playersUpdated() PlayersUpdated {
	return PlayersUpdated{Players: g.playerInfos(), Count: len(g.Roster)}
}

func (g *Game) playerInfos() []PlayerInfo {
	infos := make([]PlayerInfo, 0, len(g.Roster))
	for _, p := range g.Roster {
		infos = append(infos, PlayerInfo{Nickname: p.Nickname, IsHost: p.IsHost})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Nickname < infos[j].Nickname })
	return infos
}

func (g *Game) snapshot() SessionState {
	st := SessionState{
		SessionID:        g.Code,
		Phase:            g.Phase,
		Players:          g.playerInfos(),
		Count:            len(g.Roster),
		Duration:         g.durationSeconds(),
		RegistrationOpen: g.RegistrationOpen,
	}
	if !g.RoundStartedAt.IsZero() {
		t := g.RoundStartedAt
		st.StartTime = &t
	}
	return st
}

func (g *Game) spyNames() []string {
	names := make([]string, 0, len(g.SpyNicknames))
	for n := range g.SpyNicknames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (g *Game) durationSeconds() int {
	return int(g.Duration / time.Second)
}

func validNickname(nickname string) bool {
	if nickname == "" || !utf8.ValidString(nickname) {
		return false
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return false
	}
	for _, r := range nickname {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
