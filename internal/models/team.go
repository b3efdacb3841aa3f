package models

import "gorm.io/gorm"

// Team represents a hackathon team. Teams are created by participants,
// never persist empty, and freeze their membership once locked.
type Team struct {
	gorm.Model
	// LeaderID must always reference a current member.
	LeaderID uint   `gorm:"not null" json:"leader_id"`
	Leader   User   `gorm:"foreignKey:LeaderID" json:"-"`
	Members  []User `gorm:"foreignKey:TeamID" json:"-"`

	// Once locked, the team can no longer gain members through join
	// and the leader can no longer kick. TrackInterests is set exactly
	// once, atomically with the lock.
	TeamLocked     bool   `json:"team_locked"`
	TrackInterests string `gorm:"size:512" json:"track_interests"`

	FirstPriorityTrack  string `gorm:"size:255" json:"first_priority_track"`
	SecondPriorityTrack string `gorm:"size:255" json:"second_priority_track"`
	ThirdPriorityTrack  string `gorm:"size:255" json:"third_priority_track"`
	AssignedTrack       string `gorm:"size:255" json:"assigned_track"`

	// Correlation id with the external submission system, set at most
	// once when the team is provisioned there.
	GavelID string `gorm:"size:255" json:"gavel_id,omitempty"`
}
