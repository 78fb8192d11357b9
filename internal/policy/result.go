package policy

import "fmt"

// Decision is the outcome of a policy check for a single domain.
type Decision uint8

// Decision values.
const (
	DecisionAllow Decision = iota
	DecisionBlock
)

// type check
var _ fmt.Stringer = DecisionAllow

// String implements the [fmt.Stringer] interface for Decision.
func (d Decision) String() (s string) {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionBlock:
		return "block"
	default:
		return fmt.Sprintf("!bad_decision_%d", d)
	}
}

// Reason explains which pipeline step produced a decision.
type Reason uint8

// Reason values, in pipeline order.
const (
	// ReasonGlobalAllowlist means the domain is in the global allowlist or in
	// the static filter's explicit allowlist.
	ReasonGlobalAllowlist Reason = iota

	// ReasonProfileAllowlist means the domain matched a pattern in the
	// applicable profile's custom allowlist.
	ReasonProfileAllowlist

	// ReasonTimeBasedRule means a currently active time rule of the
	// applicable profile matched the domain.
	ReasonTimeBasedRule

	// ReasonProfileBlock means the domain matched a pattern in the applicable
	// profile's custom blocklist.
	ReasonProfileBlock

	// ReasonGlobalBlocklist means the domain is in the static filter's
	// blocklist.
	ReasonGlobalBlocklist

	// ReasonCategoryBlock means the domain belongs to a blocked category.
	ReasonCategoryBlock

	// ReasonDefaultAllow means no rule matched the domain.
	ReasonDefaultAllow
)

// type check
var _ fmt.Stringer = ReasonDefaultAllow

// String implements the [fmt.Stringer] interface for Reason.
func (r Reason) String() (s string) {
	switch r {
	case ReasonGlobalAllowlist:
		return "global_allowlist"
	case ReasonProfileAllowlist:
		return "profile_allowlist"
	case ReasonTimeBasedRule:
		return "time_based_rule"
	case ReasonProfileBlock:
		return "profile_block"
	case ReasonGlobalBlocklist:
		return "global_blocklist"
	case ReasonCategoryBlock:
		return "category_block"
	case ReasonDefaultAllow:
		return "default_allow"
	default:
		return fmt.Sprintf("!bad_reason_%d", r)
	}
}

// MarshalText implements the [encoding.TextMarshaler] interface for Reason.
func (r Reason) MarshalText() (b []byte, err error) {
	return []byte(r.String()), nil
}

// Result is the outcome of a single policy check.
type Result struct {
	// Category is the name of the category that caused a block, if any.
	// Custom rules use the category "custom".
	Category string

	// ProfileID is the string form of the applicable profile's ID, if a
	// profile took part in the decision.
	ProfileID string

	// ProfileName is the name of the applicable profile, if any.
	ProfileName string

	// Decision is the final allow-or-block verdict.
	Decision Decision

	// Reason is the pipeline step that produced the decision.
	Reason Reason
}

// type check
var _ fmt.Stringer = (*Result)(nil)

// String implements the [fmt.Stringer] interface for *Result.
func (r *Result) String() (s string) {
	if r.Category == "" {
		return fmt.Sprintf("%s (%s)", r.Decision, r.Reason)
	}

	return fmt.Sprintf("%s (%s, category %q)", r.Decision, r.Reason, r.Category)
}
