package policy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shielddns/shielddns/internal/hostpat"
)

// Level is a protection level preset for a profile.
type Level string

// Protection level presets, from most to least restrictive.
const (
	LevelKid    Level = "kid"
	LevelTeen   Level = "teen"
	LevelAdult  Level = "adult"
	LevelCustom Level = "custom"
)

// BlockedCategories returns the categories blocked by default at this
// protection level.  The result is a fresh slice the caller may modify.
func (l Level) BlockedCategories() (categories []string) {
	switch l {
	case LevelKid:
		return []string{
			"adult",
			"gambling",
			"violence",
			"malware",
			"phishing",
			"social-media",
		}
	case LevelTeen:
		return []string{"adult", "gambling", "malware", "phishing"}
	case LevelAdult:
		return []string{"malware", "phishing"}
	default:
		return nil
	}
}

// Action is what a matching time rule does to the domain.
type Action uint8

// Action values.
const (
	ActionBlock Action = iota
	ActionAllow
)

// type check
var _ fmt.Stringer = ActionBlock

// String implements the [fmt.Stringer] interface for Action.
func (a Action) String() (s string) {
	switch a {
	case ActionBlock:
		return "block"
	case ActionAllow:
		return "allow"
	default:
		return fmt.Sprintf("!bad_action_%d", a)
	}
}

// TimeRule restricts or permits a set of domain patterns during a daily
// window on the given weekdays.  Start and End are offsets from midnight in
// the local time of the clock that evaluates the rule.  A window with
// Start > End wraps past midnight.
type TimeRule struct {
	// Name is the human-readable name of the rule.
	Name string

	// Days are the weekdays on which the rule is active.
	Days []time.Weekday

	// Start is the offset from midnight at which the window opens.
	Start time.Duration

	// End is the offset from midnight at which the window closes,
	// inclusive.
	End time.Duration

	// DomainPatterns are the patterns the rule applies to, matched with
	// suffix semantics.
	DomainPatterns []string

	// Action is performed when the rule is active and a pattern matches.
	Action Action
}

// ActiveAt returns true if t falls on one of the rule's weekdays and within
// its daily window.
func (r *TimeRule) ActiveAt(t time.Time) (ok bool) {
	wd := t.Weekday()
	found := false
	for _, d := range r.Days {
		if d == wd {
			found = true

			break
		}
	}

	if !found {
		return false
	}

	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := t.Sub(day)

	if r.Start <= r.End {
		return offset >= r.Start && offset <= r.End
	}

	// The window wraps past midnight.
	return offset >= r.Start || offset <= r.End
}

// MatchesDomain returns true if domain matches one of the rule's patterns.
// domain must be normalized.
func (r *TimeRule) MatchesDomain(domain string) (ok bool) {
	for _, pat := range r.DomainPatterns {
		if hostpat.MatchSuffix(domain, pat) {
			return true
		}
	}

	return false
}

// Profile is a per-client protection policy.  Profiles are treated as
// immutable once handed to the engine; to change one, build a new profile
// and assign it again.
type Profile struct {
	// ID is the unique ID of the profile.
	ID uuid.UUID

	// Name is the human-readable name of the profile.
	Name string

	// Level is the protection level preset the profile was created from.
	Level Level

	// BlockedCategories are tested in order against the list store.  The
	// first category containing the domain wins.
	BlockedCategories []string

	// CustomBlocklist contains suffix patterns always blocked for this
	// profile.
	CustomBlocklist []string

	// CustomAllowlist contains suffix patterns always allowed for this
	// profile.  It takes precedence over every blocklist.
	CustomAllowlist []string

	// TimeRules are evaluated in order after the allowlists and before the
	// blocklists.
	TimeRules []TimeRule

	// Enabled shows if the profile takes part in decisions.  A disabled
	// profile is skipped as if it were not assigned.
	Enabled bool
}

// NewProfile returns a new enabled profile with a fresh ID and the category
// set of the given protection level.
func NewProfile(name string, level Level) (p *Profile) {
	return &Profile{
		ID:                uuid.New(),
		Name:              name,
		Level:             level,
		BlockedCategories: level.BlockedCategories(),
		Enabled:           true,
	}
}

// inAllowlist returns true if domain matches a custom allowlist pattern.
// domain must be normalized.
func (p *Profile) inAllowlist(domain string) (ok bool) {
	for _, pat := range p.CustomAllowlist {
		if hostpat.MatchSuffix(domain, pat) {
			return true
		}
	}

	return false
}

// inBlocklist returns true if domain matches a custom blocklist pattern.
// domain must be normalized.
func (p *Profile) inBlocklist(domain string) (ok bool) {
	for _, pat := range p.CustomBlocklist {
		if hostpat.MatchSuffix(domain, pat) {
			return true
		}
	}

	return false
}

// activeRule returns the first time rule that is active at now and matches
// domain.
func (p *Profile) activeRule(now time.Time, domain string) (r *TimeRule, ok bool) {
	for i := range p.TimeRules {
		r = &p.TimeRules[i]
		if r.ActiveAt(now) && r.MatchesDomain(domain) {
			return r, true
		}
	}

	return nil, false
}
