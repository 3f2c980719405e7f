package domain

import "time"

type ParticipantRole string

const (
	RoleOwner  ParticipantRole = "owner"
	RoleAdmin  ParticipantRole = "admin"
	RolePlayer ParticipantRole = "player"
)

type ResultsStatus string

const (
	ResultsNone       ResultsStatus = "none"
	ResultsInProgress ResultsStatus = "in_progress"
	ResultsFinal      ResultsStatus = "final"
)

type GameParticipant struct {
	User UserSummary     `json:"user"`
	Role ParticipantRole `json:"role"`
}

type Game struct {
	ID              string            `json:"id"`
	CreatedBy       string            `json:"created_by"`
	Title           string            `json:"title"`
	StartTime       *time.Time        `json:"start_time,omitempty"`
	EndTime         *time.Time        `json:"end_time,omitempty"`
	ResultsByAnyone bool              `json:"results_by_anyone"`
	ResultsStatus   ResultsStatus     `json:"results_status"`
	ResultsVersion  int64             `json:"results_version"`
	Participants    []GameParticipant `json:"participants,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CanEditResults mirrors the authorization rule for result edits: owners and
// admins always may, everyone else only when the game allows it.
func (g Game) CanEditResults(userID string) bool {
	if g.ResultsByAnyone {
		for _, p := range g.Participants {
			if p.User.ID == userID {
				return true
			}
		}
		return false
	}
	for _, p := range g.Participants {
		if p.User.ID == userID && (p.Role == RoleOwner || p.Role == RoleAdmin) {
			return true
		}
	}
	return false
}
