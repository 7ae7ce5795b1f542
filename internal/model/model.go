package model

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Side identifies one of the two battle participants.
type Side string

const (
	SideNone Side = ""
	Side1    Side = "side-1"
	Side2    Side = "side-2"
)

// Sides lists both sides in log order.
var Sides = [2]Side{Side1, Side2}

// Other returns the opposing side, or SideNone for SideNone.
func (s Side) Other() Side {
	switch s {
	case Side1:
		return Side2
	case Side2:
		return Side1
	default:
		return SideNone
	}
}

func (s Side) String() string {
	if s == SideNone {
		return "?"
	}
	return string(s)
}

// ParseSide maps a side or active-slot token ("p1", "p2a", "side-1", "side-2b")
// to its canonical Side. Anything after a ':' is ignored.
func ParseSide(token string) (Side, bool) {
	t := strings.ToLower(strings.TrimSpace(token))
	if i := strings.IndexByte(t, ':'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch {
	case strings.HasPrefix(t, "side-"):
		t = t[len("side-"):]
	case strings.HasPrefix(t, "p"):
		t = t[1:]
	default:
		return SideNone, false
	}
	if t == "" {
		return SideNone, false
	}
	switch t[0] {
	case '1':
		return Side1, true
	case '2':
		return Side2, true
	}
	return SideNone, false
}

// ---- Raw events emitted by the tokenizer ----

// EventKind tags a decoded log line.
type EventKind string

const (
	KindParticipant EventKind = "participant"
	KindRoster      EventKind = "roster"
	KindSwitch      EventKind = "switch"
	KindMechanic    EventKind = "mechanic"
	KindRating      EventKind = "rating"
	KindWin         EventKind = "win"
	KindFormat      EventKind = "format"
	KindTimestamp   EventKind = "timestamp"
	KindOther       EventKind = "other"
)

// RawEvent is one log line. Fields holds the positional fields after the tag,
// verbatim.
type RawEvent struct {
	Line   int
	Kind   EventKind
	Tag    string
	Fields []string
	Raw    string
}

// Field returns the i-th positional field, or "" if absent.
func (e RawEvent) Field(i int) string {
	if i < 0 || i >= len(e.Fields) {
		return ""
	}
	return e.Fields[i]
}

// ---- Parsed battle ----

// Result is the user's outcome for one game.
type Result string

const (
	ResultWin     Result = "win"
	ResultLoss    Result = "loss"
	ResultUnknown Result = "unknown"
)

// Definite reports whether the result counts toward scores and stats.
func (r Result) Definite() bool {
	return r == ResultWin || r == ResultLoss
}

type RatingChange struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Delta  int `json:"delta"`
}

// MechanicEvent records a one-time transformation (Terastallization).
type MechanicEvent struct {
	Species string `json:"species"`
	Variant string `json:"variant"`
}

// BattleRecord is the parsed result of one game.
type BattleRecord struct {
	ID       string    `json:"id"`
	Format   string    `json:"format,omitempty"`
	LogHash  string    `json:"log_hash,omitempty"`
	PlayedAt time.Time `json:"played_at,omitzero"`

	Participants          map[Side]string          `json:"participants"`
	RevealedRoster        map[Side][]string        `json:"revealed_roster"`
	ActualPicks           map[Side][]string        `json:"actual_picks"` // first-seen order, no duplicates
	SpecialMechanicEvents map[Side][]MechanicEvent `json:"special_mechanic_events"`
	RatingChanges         map[Side]*RatingChange   `json:"rating_changes,omitempty"`

	WinnerName string `json:"winner_name,omitempty"`
	HasWinner  bool   `json:"has_winner"`

	// Set by identity resolution.
	UserSide      Side   `json:"user_side,omitempty"`
	OpponentSide  Side   `json:"opponent_side,omitempty"`
	Result        Result `json:"result"`
	OpponentLabel string `json:"opponent_label"`
}

// NewBattleRecord returns a record with all maps allocated and an unknown result.
func NewBattleRecord(id string) *BattleRecord {
	return &BattleRecord{
		ID:                    id,
		Participants:          make(map[Side]string),
		RevealedRoster:        make(map[Side][]string),
		ActualPicks:           make(map[Side][]string),
		SpecialMechanicEvents: make(map[Side][]MechanicEvent),
		RatingChanges:         make(map[Side]*RatingChange),
		Result:                ResultUnknown,
	}
}

// HasPick reports whether species entered the field for side.
func (r *BattleRecord) HasPick(side Side, species string) bool {
	for _, p := range r.ActualPicks[side] {
		if p == species {
			return true
		}
	}
	return false
}

// UserName returns the user's display name, or "" when unresolved.
func (r *BattleRecord) UserName() string {
	if r.UserSide == SideNone {
		return ""
	}
	return r.Participants[r.UserSide]
}

// ---- Best-of-three series ----

// MatchResult is the outcome of a series.
type MatchResult string

const (
	MatchWin        MatchResult = "win"
	MatchLoss       MatchResult = "loss"
	MatchTie        MatchResult = "tie"
	MatchIncomplete MatchResult = "incomplete"
)

type SeriesScore struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

func (s SeriesScore) String() string {
	return strconv.Itoa(s.Wins) + "-" + strconv.Itoa(s.Losses)
}

type MatchGame struct {
	GameNumber int          `json:"game_number"`
	Record     BattleRecord `json:"record"`
}

// MatchGroup is a best-of-three aggregate against one opponent. Notes and Tags
// are owned by the caller and carried across re-grouping by ID.
type MatchGroup struct {
	ID            string      `json:"id"`
	TeamID        string      `json:"team_id"`
	OpponentLabel string      `json:"opponent_label"`
	Games         []MatchGame `json:"games"`
	Score         SeriesScore `json:"score"`
	Result        MatchResult `json:"result"`
	Notes         string      `json:"notes,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
}

// ---- Usage statistics ----

// Rate is a ratio with an explicit no-data state. Valid is false when the
// denominator was zero.
type Rate struct {
	Value float64
	Valid bool
}

// RateOf returns num/den, or a no-data Rate when den is zero.
func RateOf(num, den int) Rate {
	if den == 0 {
		return Rate{}
	}
	return Rate{Value: float64(num) / float64(den), Valid: true}
}

// Percent renders the rate as "NN.N%" or "—" for no data.
func (r Rate) Percent() string {
	if !r.Valid {
		return "—"
	}
	return strconv.FormatFloat(r.Value*100, 'f', 1, 64) + "%"
}

func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

func (r *Rate) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Rate{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Rate{Value: v, Valid: true}
	return nil
}

type PokemonUsage struct {
	Species     string `json:"species"`
	Usage       int    `json:"usage"`
	UsageRate   Rate   `json:"usage_rate"`
	Wins        int    `json:"wins"`
	WinRate     Rate   `json:"win_rate"`
	LeadUsage   int    `json:"lead_usage"`
	LeadWins    int    `json:"lead_wins"`
	LeadWinRate Rate   `json:"lead_win_rate"`
	TeraUsage   int    `json:"tera_usage"`
	TeraWins    int    `json:"tera_wins"`
	TeraWinRate Rate   `json:"tera_win_rate"`
}

// LeadPair is an unordered pair of lead species, stored sorted.
type LeadPair struct {
	Pair    [2]string `json:"pair"`
	Usage   int       `json:"usage"`
	Wins    int       `json:"wins"`
	WinRate Rate      `json:"win_rate"`
}

func (p LeadPair) Label() string {
	return p.Pair[0] + " + " + p.Pair[1]
}

type UsageStats struct {
	Games           int            `json:"games"`
	Pokemon         []PokemonUsage `json:"pokemon"`
	MostCommonLeads []LeadPair     `json:"most_common_leads"`
	BestLeads       []LeadPair     `json:"best_leads"`
}

// ---- Teams and stored replays ----

// Team owns a replay history and a roster.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Roster    []string  `json:"roster"`
	CreatedAt time.Time `json:"created_at"`
}

// ReplayState is the lifecycle state of one fetched reference.
type ReplayState string

const (
	StateRegistered ReplayState = "registered"
	StateFetching   ReplayState = "fetching"
	StateParsed     ReplayState = "parsed"
	StateFailed     ReplayState = "failed"
)

// ReplayEntry is the persisted document for one replay reference.
type ReplayEntry struct {
	Ref       string        `json:"ref"`
	TeamID    string        `json:"team_id,omitempty"`
	State     ReplayState   `json:"state"`
	Error     string        `json:"error,omitempty"`
	Record    *BattleRecord `json:"record,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}
