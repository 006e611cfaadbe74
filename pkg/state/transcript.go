package state

import "slices"

// Speaker identifies who produced a transcript message.
type Speaker string

const (
	SpeakerAlly  Speaker = "ally"
	SpeakerEnemy Speaker = "enemy"
)

// Message is one committed line of the stage transcript. Text is what was
// displayed; for a suppressed enemy reply that is the blocked marker, not the
// raw reply.
type Message struct {
	Speaker    Speaker `json:"speaker"`
	Text       string  `json:"text"`
	Suppressed bool    `json:"suppressed,omitempty"`
}

// Transcript is the ordered conversation of the current stage attempt.
type Transcript []Message

// Clone returns an independent copy.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return Transcript{}
	}
	return slices.Clone(t)
}

// LastExchange returns the most recent ally and enemy messages. ok is false
// until at least one full turn has been committed.
func (t Transcript) LastExchange() (ally, enemy Message, ok bool) {
	var haveAlly, haveEnemy bool
	for i := len(t) - 1; i >= 0 && !(haveAlly && haveEnemy); i-- {
		switch t[i].Speaker {
		case SpeakerAlly:
			if !haveAlly {
				ally, haveAlly = t[i], true
			}
		case SpeakerEnemy:
			if !haveEnemy {
				enemy, haveEnemy = t[i], true
			}
		}
	}
	return ally, enemy, haveAlly && haveEnemy
}

// Outcome is the result of the current stage attempt.
type Outcome string

const (
	OutcomeInProgress Outcome = "in_progress"
	OutcomeCleared    Outcome = "cleared"
	OutcomeFailed     Outcome = "failed"
)

// Terminal holds the session-ending flags.
type Terminal struct {
	GameOver   bool `json:"game_over"`
	Victorious bool `json:"victorious"`
}

// Ended reports whether either flag is set.
func (t Terminal) Ended() bool {
	return t.GameOver || t.Victorious
}
