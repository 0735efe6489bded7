package models

// Source tags how an email candidate was obtained
type Source string

const (
	SourceUnset     Source = ""          // Zero value = unset/unknown
	SourceObserved  Source = "observed"  // Matched in page text
	SourceMailto    Source = "mailto"    // Taken from a mailto: hyperlink
	SourceGenerated Source = "generated" // Synthesized from the domain name
)

// String implements fmt.Stringer for logging
func (s Source) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the source is one of the three known tags
func (s Source) IsValid() bool {
	switch s {
	case SourceObserved, SourceMailto, SourceGenerated:
		return true
	}
	return false
}

// Outcome is the terminal state of one pipeline run
type Outcome string

const (
	OutcomeUnset     Outcome = ""
	OutcomeCompleted Outcome = "completed"
	OutcomeStopped   Outcome = "stopped" // Stop token raised; partial results kept
	OutcomeBlocked   Outcome = "blocked" // Seed disallowed by robots.txt, nothing crawled
	OutcomeError     Outcome = "error"
)

// String implements fmt.Stringer for logging
func (o Outcome) String() string {
	if o == "" {
		return "unset"
	}
	return string(o)
}

// IsTerminal reports whether the outcome ends a run
func (o Outcome) IsTerminal() bool {
	switch o {
	case OutcomeCompleted, OutcomeStopped, OutcomeBlocked, OutcomeError:
		return true
	}
	return false
}
