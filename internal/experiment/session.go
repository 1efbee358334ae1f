package experiment

import "time"

// Session identifies one participant's run. It is fixed at construction.
type Session struct {
	ID            string
	ParticipantID string
	StartedAt     time.Time
}

// Participant returns the participant id, or "unknown" when none was given.
func (s Session) Participant() string {
	if s.ParticipantID == "" {
		return UnknownParticipant
	}
	return s.ParticipantID
}
