package models

import "gorm.io/gorm"

// ReimbursementClass is a tiered travel reimbursement bucket keyed by
// the applicant's travel origin.
type ReimbursementClass string

const (
	ReimbursementNone         ReimbursementClass = "None"
	ReimbursementFinland      ReimbursementClass = "Finland"
	ReimbursementBaltics      ReimbursementClass = "Baltics"
	ReimbursementNordics      ReimbursementClass = "Nordics"
	ReimbursementEurope       ReimbursementClass = "Europe"
	ReimbursementRestOfWorld  ReimbursementClass = "Rest of the World"
	ReimbursementGoldenTicket ReimbursementClass = "Golden Ticket"
	ReimbursementRejected     ReimbursementClass = "Rejected"
)

// Enrollment types for team matchmaking.
const (
	EnrollmentIndividual = "individual"
	EnrollmentTeam       = "team"
)

// Status tracks a participant through the admission pipeline.
// Flags combine into a state vector rather than a single enum:
// confirmed implies admitted implies softAdmitted.
type Status struct {
	CompletedProfile     bool   `json:"completed_profile"`
	SoftAdmitted         bool   `json:"soft_admitted"`
	Admitted             bool   `json:"admitted"`
	AdmittedBy           string `gorm:"size:255" json:"admitted_by,omitempty"`
	Confirmed            bool   `json:"confirmed"`
	ConfirmBy            int64  `json:"confirm_by"` // epoch ms deadline
	Declined             bool   `json:"declined"`
	Rejected             bool   `json:"rejected"`
	LaterRejected        bool   `json:"later_rejected"`
	Waitlist             bool   `json:"waitlist"`
	Rating               int    `json:"rating"` // 0..5, 0 = not rated
	CheckedIn            bool   `json:"checked_in"`
	CheckInTime          int64  `json:"check_in_time"`
	TerminalAccepted     bool   `json:"terminal_accepted"`
	ReimbursementApplied bool   `json:"reimbursement_applied"`
}

// Profile holds the application answers a participant submits.
type Profile struct {
	Name                       string             `gorm:"size:255" json:"name"`
	Gender                     string             `gorm:"size:1" json:"gender"` // M, F, O, N
	School                     string             `gorm:"size:255" json:"school"`
	HomeCountry                string             `gorm:"size:255" json:"home_country"`
	TravelFromCountry          string             `gorm:"size:255" json:"travel_from_country"`
	TravelFromCity             string             `gorm:"size:255" json:"travel_from_city"`
	MostInterestingTrack       string             `gorm:"size:255" json:"most_interesting_track"`
	TeamSelection              string             `gorm:"size:50" json:"team_selection"` // alone, teamOrAlone, onlyTeam
	NeedsReimbursement         bool               `json:"needs_reimbursement"`
	NeedsVisa                  bool               `json:"needs_visa"`
	AppliedReimbursementClass  ReimbursementClass `gorm:"size:50" json:"applied_reimbursement_class"`
	AcceptedReimbursementClass ReimbursementClass `gorm:"size:50" json:"accepted_reimbursement_class"`
	TerminalEssay              string             `json:"terminal_essay"`
	SubmittedApplication       bool               `json:"submitted_application"`
}

// Confirmation holds the attendance details submitted after admission.
type Confirmation struct {
	PhoneNumber         string `gorm:"size:50" json:"phone_number"`
	ShirtSize           string `gorm:"size:10" json:"shirt_size"`
	DietaryRestrictions string `gorm:"size:512" json:"dietary_restrictions"` // comma separated
	HostNeededFri       bool   `json:"host_needed_fri"`
	HostNeededSat       bool   `json:"host_needed_sat"`
	WantsHardware       bool   `json:"wants_hardware"`
	FirstPriorityTrack  string `gorm:"size:255" json:"first_priority_track"`
	SecondPriorityTrack string `gorm:"size:255" json:"second_priority_track"`
	ThirdPriorityTrack  string `gorm:"size:255" json:"third_priority_track"`
}

// Reimbursement is the travel reimbursement application.
type Reimbursement struct {
	Iban         string `gorm:"size:64" json:"iban"`
	Swift        string `gorm:"size:32" json:"swift"`
	ReceiptTotal string `gorm:"size:32" json:"receipt_total"`
	FileName     string `gorm:"size:255" json:"file_name"`
	FileUploaded bool   `json:"file_uploaded"`
}

// MatchmakingIndividual is the matchmaking card of a participant
// looking for a team.
type MatchmakingIndividual struct {
	MostInterestingTrack string `gorm:"size:255" json:"most_interesting_track"`
	Role                 string `gorm:"size:255" json:"role"`
	SlackHandle          string `gorm:"size:255" json:"slack_handle"`
	Skills               string `gorm:"size:512" json:"skills"`
	FreeText             string `json:"free_text"`
}

// MatchmakingTeam is the matchmaking card of a team looking for members.
type MatchmakingTeam struct {
	MostInterestingTrack string `gorm:"size:255" json:"most_interesting_track"`
	TopChallenges        string `gorm:"size:512" json:"top_challenges"`
	Roles                string `gorm:"size:512" json:"roles"`
	SlackHandle          string `gorm:"size:255" json:"slack_handle"`
	FreeText             string `json:"free_text"`
}

// Matchmaking is independent of actual team membership: a participant
// can enroll in the directory before forming a team, and any team
// mutation resets the enrollment.
type Matchmaking struct {
	Enrolled       bool                  `json:"enrolled"`
	EnrollmentType string                `gorm:"size:20" json:"enrollment_type"` // individual, team or ''
	Individual     MatchmakingIndividual `gorm:"embedded;embeddedPrefix:individual_" json:"individual"`
	Team           MatchmakingTeam       `gorm:"embedded;embeddedPrefix:team_" json:"team"`
}

// User represents a hackathon participant.
type User struct {
	gorm.Model
	// PID is the human-facing participant id generated from the
	// shuffled word list (see pkg/wordid).
	PID          string `gorm:"column:pid;size:255;uniqueIndex;not null" json:"pid"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"` // stored lowercased
	Nickname     string `gorm:"size:255" json:"nickname"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	Role         string `gorm:"size:50;not null;default:'user';index" json:"role"`

	Verified            bool `json:"verified"`
	SpecialRegistration bool `json:"special_registration"`

	Profile       Profile       `gorm:"embedded;embeddedPrefix:profile_" json:"profile"`
	Status        Status        `gorm:"embedded;embeddedPrefix:status_" json:"status"`
	Confirmation  Confirmation  `gorm:"embedded;embeddedPrefix:confirmation_" json:"confirmation"`
	Reimbursement Reimbursement `gorm:"embedded;embeddedPrefix:reimbursement_" json:"reimbursement"`
	Matchmaking   Matchmaking   `gorm:"embedded;embeddedPrefix:mm_" json:"team_matchmaking"`

	// A user can belong to at most one team at a time. A dangling
	// reference (team removed between the two writes of a membership
	// operation) is resolved defensively as "no team".
	TeamID       *uint `gorm:"index" json:"team_id"`
	Team         *Team `gorm:"foreignKey:TeamID" json:"-"`
	TeamJoinedAt int64 `json:"team_joined_at"` // epoch ms, orders members for leader handoff

	// Correlation with the external submission system. Present only
	// once the team has been provisioned there.
	GavelID    string `gorm:"size:255" json:"gavel_id,omitempty"`
	GavelToken string `gorm:"size:512" json:"gavel_token,omitempty"`
}
