package domain

import "time"

const (
	// MinOptions and MaxOptions bound the number of answer options per question.
	MinOptions = 2
	MaxOptions = 10
)

// Question is a single-choice question as loaded from a bank.
// CorrectText and CanonicalOptions are captured before any shuffle so that a
// retry copy can be reshuffled independently of the displayed order.
type Question struct {
	Prompt           string   `json:"prompt"`
	Options          []string `json:"options"`
	CorrectIndex     int      `json:"correctIndex"`
	CorrectText      string   `json:"correctText"`
	CanonicalOptions []string `json:"canonicalOptions"`
	Retry            bool     `json:"retry"`
}

// Valid reports whether the question satisfies the option count and index invariants.
func (q Question) Valid() bool {
	n := len(q.Options)
	return n >= MinOptions && n <= MaxOptions && q.CorrectIndex >= 0 && q.CorrectIndex < n
}

// Correlation ties a delivery token back to the question that produced it.
type Correlation struct {
	ParticipantID string `json:"participantId"`
	SessionID     string `json:"sessionId"`
	Position      int    `json:"position"`
	CorrectIndex  int    `json:"correctIndex"`
}

// Progress is a read-only view of a running quiz.
type Progress struct {
	BankID    string    `json:"bankId"`
	Cursor    int       `json:"cursor"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	StartedAt time.Time `json:"startedAt"`
}

// Result summarizes a finished quiz.
type Result struct {
	BankID string `json:"bankId"`
	Score  int    `json:"score"`
	Total  int    `json:"total"`
}
