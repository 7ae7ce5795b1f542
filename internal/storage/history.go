package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// ErrNotFound is returned by typed loaders when a document is missing.
var ErrNotFound = errors.New("not found")

const teamIndexKey = "teams"

func teamKey(id string) string        { return "team/" + id }
func teamReplaysKey(id string) string { return "team/" + id + "/replays" }
func teamMatchesKey(id string) string { return "team/" + id + "/matches" }
func replayKey(ref string) string     { return "replay/" + ref }

// PutJSON encodes v and stores it under key.
func PutJSON(kv KV, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(key, b)
}

// GetJSON decodes the document under key into v. It reports false when the
// key is missing, leaving v untouched.
func GetJSON(kv KV, key string, v any) (bool, error) {
	b, ok, err := kv.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// ---- Teams ----

// SaveTeam stores a team and adds it to the team index.
func SaveTeam(kv KV, team model.Team) error {
	if team.ID == "" {
		return fmt.Errorf("save team: empty id")
	}
	if err := PutJSON(kv, teamKey(team.ID), team); err != nil {
		return err
	}
	var ids []string
	if _, err := GetJSON(kv, teamIndexKey, &ids); err != nil {
		return err
	}
	for _, id := range ids {
		if id == team.ID {
			return nil
		}
	}
	return PutJSON(kv, teamIndexKey, append(ids, team.ID))
}

// LoadTeam returns the team with the given id, or ErrNotFound.
func LoadTeam(kv KV, id string) (*model.Team, error) {
	var t model.Team
	ok, err := GetJSON(kv, teamKey(id), &t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

// ListTeams returns all teams in creation order.
func ListTeams(kv KV) ([]model.Team, error) {
	var ids []string
	if _, err := GetJSON(kv, teamIndexKey, &ids); err != nil {
		return nil, err
	}
	out := make([]model.Team, 0, len(ids))
	for _, id := range ids {
		t, err := LoadTeam(kv, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, nil
}

// FindTeam resolves a team by exact id, id prefix, or case-insensitive name.
func FindTeam(kv KV, query string) (*model.Team, error) {
	teams, err := ListTeams(kv)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		if teams[i].ID == query {
			return &teams[i], nil
		}
	}
	var match *model.Team
	for i := range teams {
		if strings.HasPrefix(teams[i].ID, query) || strings.EqualFold(teams[i].Name, query) {
			if match != nil {
				return nil, fmt.Errorf("team %q is ambiguous", query)
			}
			match = &teams[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("team %q: %w", query, ErrNotFound)
	}
	return match, nil
}

// ---- Replays ----

// SaveReplay stores the entry under its reference, overwriting any prior entry.
func SaveReplay(kv KV, entry model.ReplayEntry) error {
	return PutJSON(kv, replayKey(entry.Ref), entry)
}

// LoadReplay returns the stored entry for ref.
func LoadReplay(kv KV, ref string) (*model.ReplayEntry, bool, error) {
	var e model.ReplayEntry
	ok, err := GetJSON(kv, replayKey(ref), &e)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &e, true, nil
}

// AppendTeamReplay adds ref to the team's history list if not already present.
func AppendTeamReplay(kv KV, teamID, ref string) error {
	refs, err := TeamReplayRefs(kv, teamID)
	if err != nil {
		return err
	}
	for _, r := range refs {
		if r == ref {
			return nil
		}
	}
	return PutJSON(kv, teamReplaysKey(teamID), append(refs, ref))
}

// TeamReplayRefs returns the team's references in registration order.
func TeamReplayRefs(kv KV, teamID string) ([]string, error) {
	var refs []string
	if _, err := GetJSON(kv, teamReplaysKey(teamID), &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// TeamReplays returns every stored entry of the team, including placeholders
// and failures, in registration order.
func TeamReplays(kv KV, teamID string) ([]model.ReplayEntry, error) {
	refs, err := TeamReplayRefs(kv, teamID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ReplayEntry, 0, len(refs))
	for _, ref := range refs {
		e, ok, err := LoadReplay(kv, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, *e)
	}
	return out, nil
}

// TeamRecords returns the parsed records of a team in registration order.
// Entries still registered, fetching, or failed are skipped.
func TeamRecords(kv KV, teamID string) ([]model.BattleRecord, error) {
	entries, err := TeamReplays(kv, teamID)
	if err != nil {
		return nil, err
	}
	var out []model.BattleRecord
	for _, e := range entries {
		if e.State == model.StateParsed && e.Record != nil {
			out = append(out, *e.Record)
		}
	}
	return out, nil
}

// ---- Match groups ----

// SaveMatches replaces the stored match groups of a team.
func SaveMatches(kv KV, teamID string, groups []model.MatchGroup) error {
	return PutJSON(kv, teamMatchesKey(teamID), groups)
}

// LoadMatches returns the stored match groups of a team (nil if none).
func LoadMatches(kv KV, teamID string) ([]model.MatchGroup, error) {
	var groups []model.MatchGroup
	if _, err := GetJSON(kv, teamMatchesKey(teamID), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
