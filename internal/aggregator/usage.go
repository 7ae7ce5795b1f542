package aggregator

import (
	"sort"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// gameView is one scored game reduced to the user side's canonical picks.
type gameView struct {
	won   bool
	picks map[string]bool
	leads []string // canonical display names, at most two
	tera  map[string]bool
}

// ComputeUsage computes per-Pokémon usage and win rates for roster over the
// games with a definite result, plus lead-pair tables truncated to topN
// entries (topN <= 0 keeps all). Rates with a zero denominator are no-data.
func ComputeUsage(roster []string, records []model.BattleRecord, topN int) model.UsageStats {
	games := viewGames(records)

	// ---- Pass 1: per-species usage, leads, tera. ----

	var (
		order []string
		names = make(map[string]string)
	)
	for _, r := range roster {
		k := speciesKey(r)
		if k == "" {
			continue
		}
		if _, seen := names[k]; seen {
			continue
		}
		names[k] = CanonicalSpecies(r)
		order = append(order, k)
	}

	pokemon := make([]model.PokemonUsage, 0, len(order))
	for _, k := range order {
		u := model.PokemonUsage{Species: names[k]}
		for _, g := range games {
			if g.picks[k] {
				u.Usage++
				if g.won {
					u.Wins++
				}
			}
			for _, lead := range g.leads {
				if speciesKey(lead) == k {
					u.LeadUsage++
					if g.won {
						u.LeadWins++
					}
				}
			}
			if g.tera[k] {
				u.TeraUsage++
				if g.won {
					u.TeraWins++
				}
			}
		}
		u.UsageRate = model.RateOf(u.Usage, len(games))
		u.WinRate = model.RateOf(u.Wins, u.Usage)
		u.LeadWinRate = model.RateOf(u.LeadWins, u.LeadUsage)
		u.TeraWinRate = model.RateOf(u.TeraWins, u.TeraUsage)
		pokemon = append(pokemon, u)
	}
	sort.SliceStable(pokemon, func(i, j int) bool {
		return pokemon[i].Usage > pokemon[j].Usage
	})

	// ---- Pass 2: lead pairs keyed by the sorted pair. ----

	pairs := make(map[[2]string]*model.LeadPair)
	for _, g := range games {
		if len(g.leads) < 2 {
			continue
		}
		pair := sortedPair(g.leads[0], g.leads[1])
		key := [2]string{speciesKey(pair[0]), speciesKey(pair[1])}
		p, ok := pairs[key]
		if !ok {
			p = &model.LeadPair{Pair: pair}
			pairs[key] = p
		}
		p.Usage++
		if g.won {
			p.Wins++
		}
	}
	all := make([]model.LeadPair, 0, len(pairs))
	for _, p := range pairs {
		p.WinRate = model.RateOf(p.Wins, p.Usage)
		all = append(all, *p)
	}

	mostCommon := append([]model.LeadPair(nil), all...)
	sort.Slice(mostCommon, func(i, j int) bool {
		a, b := mostCommon[i], mostCommon[j]
		if a.Usage != b.Usage {
			return a.Usage > b.Usage
		}
		return a.Label() < b.Label()
	})

	best := append([]model.LeadPair(nil), all...)
	sort.Slice(best, func(i, j int) bool {
		a, b := best[i], best[j]
		if a.WinRate.Value != b.WinRate.Value {
			return a.WinRate.Value > b.WinRate.Value
		}
		if a.Usage != b.Usage {
			return a.Usage > b.Usage
		}
		return a.Label() < b.Label()
	})

	return model.UsageStats{
		Games:           len(games),
		Pokemon:         pokemon,
		MostCommonLeads: truncate(mostCommon, topN),
		BestLeads:       truncate(best, topN),
	}
}

// viewGames keeps games with a resolved user and a definite result.
func viewGames(records []model.BattleRecord) []gameView {
	var out []gameView
	for _, r := range records {
		if r.UserSide == model.SideNone || !r.Result.Definite() {
			continue
		}
		g := gameView{
			won:   r.Result == model.ResultWin,
			picks: make(map[string]bool),
			tera:  make(map[string]bool),
		}
		for _, p := range r.ActualPicks[r.UserSide] {
			k := speciesKey(p)
			if k == "" || g.picks[k] {
				continue
			}
			g.picks[k] = true
			if len(g.leads) < 2 {
				g.leads = append(g.leads, CanonicalSpecies(p))
			}
		}
		for _, ev := range r.SpecialMechanicEvents[r.UserSide] {
			if k := speciesKey(ev.Species); k != "" {
				g.tera[k] = true
			}
		}
		out = append(out, g)
	}
	return out
}

func sortedPair(a, b string) [2]string {
	if speciesKey(b) < speciesKey(a) {
		a, b = b, a
	}
	return [2]string{a, b}
}

func truncate(pairs []model.LeadPair, n int) []model.LeadPair {
	if n > 0 && len(pairs) > n {
		return pairs[:n]
	}
	return pairs
}
