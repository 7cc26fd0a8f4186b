package validation

import (
	"fmt"
	"regexp"
	"time"

	"github.com/synthbet/arbpipeline/internal/domain"
)

// NBAConfig holds the NBA rule set bounds.
type NBAConfig struct {
	MaxQuarterScore int
	QuarterMinutes  int
	MaxOvertimes    int
	// LiveMaxRemaining caps how much game time may remain for a live quote
	// to be considered actionable.
	LiveMaxRemaining time.Duration
}

// GameState is an optional live-game snapshot keyed by event id. Quarter
// scores are home/away points per completed or in-progress period.
type GameState struct {
	QuarterScores [][2]int
	Period        int
	Clock         time.Duration
}

// GameStateFn resolves the live state of an event; ok == false means no
// snapshot is available (pre-game or feed gap) and score checks are skipped.
type GameStateFn func(eventID string) (state GameState, ok bool)

// NBA game ids look like nba-lal-bos-20260314: away tricode, home tricode,
// game date.
var nbaGameID = regexp.MustCompile(`^nba-([a-z]{3})-([a-z]{3})-(\d{8})$`)

var nbaTeams = map[string]bool{
	"atl": true, "bkn": true, "bos": true, "cha": true, "chi": true,
	"cle": true, "dal": true, "den": true, "det": true, "gsw": true,
	"hou": true, "ind": true, "lac": true, "lal": true, "mem": true,
	"mia": true, "mil": true, "min": true, "nop": true, "nyk": true,
	"okc": true, "orl": true, "phi": true, "phx": true, "por": true,
	"sac": true, "sas": true, "tor": true, "uta": true, "was": true,
}

const overtimeMinutes = 5

// NBARuleSet validates NBA-specific invariants: game id format, known teams,
// per-quarter score bounds, and live timing bounds.
type NBARuleSet struct {
	cfg   NBAConfig
	state GameStateFn
}

// NewNBARuleSet creates the rule set. state may be nil when no live game
// snapshots are available.
func NewNBARuleSet(cfg NBAConfig, state GameStateFn) *NBARuleSet {
	return &NBARuleSet{cfg: cfg, state: state}
}

func (r *NBARuleSet) Name() string { return "nba" }

func (r *NBARuleSet) AppliesTo(arb domain.SyntheticArbitrage) bool {
	return arb.PrimaryLeg.Sport == domain.SportNBA && arb.SecondaryLeg.Sport == domain.SportNBA
}

func (r *NBARuleSet) Apply(arb domain.SyntheticArbitrage) []domain.Issue {
	var issues []domain.Issue

	issues = append(issues, r.checkGameID(arb.EventID)...)

	legs := []struct {
		name string
		leg  domain.ProcessedTick
	}{
		{"primary", arb.PrimaryLeg},
		{"secondary", arb.SecondaryLeg},
	}
	for _, l := range legs {
		issues = append(issues, r.checkLiveTiming(l.name, l.leg)...)
	}

	if r.state != nil {
		if state, ok := r.state(arb.EventID); ok {
			issues = append(issues, r.checkScores(state)...)
		}
	}
	return issues
}

func (r *NBARuleSet) checkGameID(eventID string) []domain.Issue {
	dim := domain.DimensionSport
	m := nbaGameID.FindStringSubmatch(eventID)
	if m == nil {
		return []domain.Issue{issue(domain.SeverityError, "invalid_game_id", dim,
			fmt.Sprintf("event id %q does not match nba-<away>-<home>-<yyyymmdd>", eventID))}
	}

	var issues []domain.Issue
	away, home, date := m[1], m[2], m[3]
	if !nbaTeams[away] {
		issues = append(issues, issue(domain.SeverityError, "unknown_team", dim,
			fmt.Sprintf("unknown away team %q", away)))
	}
	if !nbaTeams[home] {
		issues = append(issues, issue(domain.SeverityError, "unknown_team", dim,
			fmt.Sprintf("unknown home team %q", home)))
	}
	if away == home {
		issues = append(issues, issue(domain.SeverityError, "team_plays_itself", dim,
			fmt.Sprintf("away and home are both %q", away)))
	}
	if _, err := time.Parse("20060102", date); err != nil {
		issues = append(issues, issue(domain.SeverityError, "invalid_game_date", dim,
			fmt.Sprintf("game date %q is not a calendar date", date)))
	}
	return issues
}

// checkLiveTiming validates the live-market fields of one leg. Pre-game ticks
// carry zero values and are skipped.
func (r *NBARuleSet) checkLiveTiming(name string, leg domain.ProcessedTick) []domain.Issue {
	dim := domain.DimensionSport
	if leg.Period == 0 && leg.TimeRemaining == 0 {
		return nil
	}

	var issues []domain.Issue
	maxPeriod := 4 + r.cfg.MaxOvertimes
	if leg.Period < 1 || leg.Period > maxPeriod {
		issues = append(issues, issue(domain.SeverityError, "invalid_period", dim,
			fmt.Sprintf("%s leg period %d outside 1..%d", name, leg.Period, maxPeriod)))
		return issues
	}

	periodLen := time.Duration(r.cfg.QuarterMinutes) * time.Minute
	if leg.Period > 4 {
		periodLen = overtimeMinutes * time.Minute
	}
	if leg.TimeRemaining < 0 || leg.TimeRemaining > periodLen {
		issues = append(issues, issue(domain.SeverityError, "invalid_clock", dim,
			fmt.Sprintf("%s leg clock %s outside period length %s", name, leg.TimeRemaining, periodLen)))
	}
	if r.cfg.LiveMaxRemaining > 0 && leg.TimeRemaining > r.cfg.LiveMaxRemaining {
		issues = append(issues, issue(domain.SeverityWarning, "live_timing_bound", dim,
			fmt.Sprintf("%s leg has %s remaining, beyond the live trading bound %s",
				name, leg.TimeRemaining, r.cfg.LiveMaxRemaining)))
	}
	return issues
}

func (r *NBARuleSet) checkScores(state GameState) []domain.Issue {
	dim := domain.DimensionSport
	var issues []domain.Issue

	maxPeriods := 4 + r.cfg.MaxOvertimes
	if len(state.QuarterScores) > maxPeriods {
		issues = append(issues, issue(domain.SeverityError, "too_many_periods", dim,
			fmt.Sprintf("snapshot reports %d periods, maximum %d", len(state.QuarterScores), maxPeriods)))
	}

	for i, q := range state.QuarterScores {
		sides := []struct {
			name string
			pts  int
		}{{"home", q[0]}, {"away", q[1]}}
		for _, s := range sides {
			if s.pts < 0 || s.pts > r.cfg.MaxQuarterScore {
				issues = append(issues, issue(domain.SeverityError, "quarter_score_out_of_bounds", dim,
					fmt.Sprintf("period %d %s score %d outside 0..%d", i+1, s.name, s.pts, r.cfg.MaxQuarterScore)))
			}
		}
	}
	return issues
}
