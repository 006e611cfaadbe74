package textfilter

import (
	"strings"

	"golang.org/x/text/cases"
)

// BlockedMarker replaces an enemy reply that leaked the secret on a stage
// with an active output filter.
const BlockedMarker = "[BLOCKED] password detected"

// Verdict is the result of screening one enemy reply.
type Verdict struct {
	Displayed  string // text to show and commit to the transcript
	Detected   bool   // raw text contained the secret
	Suppressed bool   // Displayed is the blocked marker
}

// Detect reports whether text contains secret as a case-insensitive
// substring. Full Unicode case folding is used, so "Straße" matches
// "STRASSE". An empty secret never matches.
func Detect(text, secret string) bool {
	if secret == "" {
		return false
	}
	// Casers carry state and are not safe to share.
	return strings.Contains(cases.Fold().String(text), cases.Fold().String(secret))
}

// Screen checks raw for the secret and applies the output filter. Detection
// always runs against the raw reply, so a suppressed leak still clears the
// stage.
func Screen(raw, secret string, filterOn bool) Verdict {
	v := Verdict{Displayed: raw, Detected: Detect(raw, secret)}
	if filterOn && v.Detected {
		v.Displayed = BlockedMarker
		v.Suppressed = true
	}
	return v
}
