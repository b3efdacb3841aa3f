package admission

import (
	"strings"

	"gorm.io/gorm"

	"hackreg/backend/internal/models"
)

// Filters are the status filters of the admin user list. Enabled
// filters are ANDed together; each one encodes the same pipeline slice
// the review UI works through (e.g. "submitted" means completed but not
// yet soft admitted).
type Filters struct {
	Verified           bool
	Submitted          bool
	SoftAdmitted       bool
	Admitted           bool
	Confirmed          bool
	AcceptedToTerminal bool
	NeedsReimbursement bool
	NeedsVisa          bool
	RequestedClass     string
	AcceptedClass      string
	Rejected           bool
	Rated              bool
	Rated5             bool
	Rated4             bool
	Rated3             bool
	NotRated           bool
	Teams              bool
	Individuals        bool
	Terminal           bool
	Special            bool
}

// PageQuery describes one page of the admin user list.
type PageQuery struct {
	Page     int
	Size     int
	SortBy   string
	SortDesc bool
	Text     string
	Filters  Filters
}

// PagedUser decorates a user with the lock state of its team.
type PagedUser struct {
	models.User
	TeamLocked bool `json:"team_locked"`
}

// UserPage is one page of the admin user list.
type UserPage struct {
	Users      []PagedUser `json:"users"`
	Page       int         `json:"page"`
	Size       int         `json:"size"`
	TotalPages int64       `json:"total_pages"`
}

// textColumns are the fields the free-text search matches against
// (ORed together).
var textColumns = []string{
	"nickname",
	"email",
	"pid",
	"profile_name",
	"profile_home_country",
	"profile_travel_from_country",
	"profile_travel_from_city",
	"profile_school",
	"profile_most_interesting_track",
	"profile_applied_reimbursement_class",
}

// sortColumns whitelists sortable columns; anything else falls back to
// creation order.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"rating":     "status_rating",
	"team":       "team_id",
	"email":      "email",
	"nickname":   "nickname",
}

func (e *Engine) pageQuery(q PageQuery) *gorm.DB {
	db := e.db.Model(&models.User{})

	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + text + "%"
		or := e.db.Where(textColumns[0]+" LIKE ?", pattern)
		for _, col := range textColumns[1:] {
			or = or.Or(col+" LIKE ?", pattern)
		}
		db = db.Where(or)
	}

	f := q.Filters
	if f.Verified {
		db = db.Where("verified = ? AND status_completed_profile = ? AND status_rejected = ?", true, false, false)
	}
	if f.Submitted {
		db = db.Where("status_completed_profile = ? AND status_soft_admitted = ? AND status_rejected = ?", true, false, false)
	}
	if f.SoftAdmitted {
		db = db.Where("status_soft_admitted = ? AND status_admitted = ? AND status_confirmed = ? AND status_rejected = ?", true, false, false, false)
	}
	if f.Admitted {
		db = db.Where("status_admitted = ? AND status_confirmed = ? AND status_rejected = ?", true, false, false)
	}
	if f.Confirmed {
		db = db.Where("status_confirmed = ? AND status_rejected = ?", true, false)
	}
	if f.AcceptedToTerminal {
		db = db.Where("status_terminal_accepted = ?", true)
	}
	if f.NeedsReimbursement {
		db = db.Where("profile_needs_reimbursement = ? AND status_rejected = ?", true, false)
	}
	if f.NeedsVisa {
		db = db.Where("profile_needs_visa = ? AND status_rejected = ?", true, false)
	}
	if f.RequestedClass != "" {
		db = db.Where("profile_applied_reimbursement_class = ? AND profile_needs_reimbursement = ?", f.RequestedClass, true)
	}
	if f.AcceptedClass != "" {
		db = db.Where("profile_accepted_reimbursement_class = ?", f.AcceptedClass)
	}
	if f.Rejected {
		db = db.Where("status_rejected = ?", true)
	}
	if f.Rated {
		db = db.Where("status_rating > ?", 0)
	}
	if f.Rated5 {
		db = db.Where("status_rating = ?", 5)
	}
	if f.Rated4 {
		db = db.Where("status_rating = ?", 4)
	}
	if f.Rated3 {
		db = db.Where("status_rating = ?", 3)
	}
	if f.NotRated {
		db = db.Where("status_rating = ?", 0)
	}
	if f.Teams {
		db = db.Where("team_id IS NOT NULL")
	}
	if f.Individuals {
		db = db.Where("team_id IS NULL")
	}
	if f.Terminal {
		db = db.Where("profile_terminal_essay <> ''")
	}
	if f.Special {
		db = db.Where("special_registration = ?", true)
	}
	return db
}

// ListPage returns one filtered, sorted page of users for the admin
// view, each decorated with its team's lock state.
func (e *Engine) ListPage(q PageQuery) (*UserPage, error) {
	if q.Size <= 0 {
		q.Size = 50
	}
	if q.Page < 0 {
		q.Page = 0
	}

	var total int64
	if err := e.pageQuery(q).Count(&total).Error; err != nil {
		return nil, err
	}

	order := "created_at"
	if col, ok := sortColumns[q.SortBy]; ok {
		order = col
	}
	if q.SortDesc {
		order += " DESC"
	}

	var users []models.User
	err := e.pageQuery(q).
		Order(order).
		Offset(q.Page * q.Size).
		Limit(q.Size).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	// One pass over teams instead of a lookup per user.
	lockedTeams := map[uint]bool{}
	var teams []models.Team
	if err := e.db.Select("id", "team_locked").Find(&teams).Error; err != nil {
		return nil, err
	}
	for _, t := range teams {
		lockedTeams[t.ID] = t.TeamLocked
	}

	page := &UserPage{
		Users:      make([]PagedUser, 0, len(users)),
		Page:       q.Page,
		Size:       q.Size,
		TotalPages: (total + int64(q.Size) - 1) / int64(q.Size),
	}
	for _, u := range users {
		locked := false
		if u.TeamID != nil {
			locked = lockedTeams[*u.TeamID]
		}
		page.Users = append(page.Users, PagedUser{User: u, TeamLocked: locked})
	}
	return page, nil
}

// MatchmakingQuery describes one page of the matchmaking directory.
type MatchmakingQuery struct {
	Type string // "individuals" or "teams"
	Page int
	Size int
	Text string
}

// MatchmakingPage is one page of matchmaking cards.
type MatchmakingPage struct {
	Cards      []models.Matchmaking `json:"users"`
	Page       int                  `json:"page"`
	Size       int                  `json:"size"`
	TotalPages int64                `json:"total_pages"`
}

// Matchmaking lists enrolled matchmaking cards of the requested type,
// optionally narrowed by a free-text search over the card fields.
func (e *Engine) Matchmaking(q MatchmakingQuery) (*MatchmakingPage, error) {
	if q.Type != "individuals" && q.Type != "teams" {
		return nil, preconditionf("unknown matchmaking type %q", q.Type)
	}
	if q.Size <= 0 {
		q.Size = 50
	}
	if q.Page < 0 {
		q.Page = 0
	}

	enrollment := models.EnrollmentIndividual
	cols := []string{
		"mm_individual_most_interesting_track",
		"mm_individual_role",
		"mm_individual_slack_handle",
		"mm_individual_skills",
	}
	if q.Type == "teams" {
		enrollment = models.EnrollmentTeam
		cols = []string{
			"mm_team_most_interesting_track",
			"mm_team_roles",
			"mm_team_slack_handle",
			"mm_team_top_challenges",
		}
	}

	base := func() *gorm.DB {
		db := e.db.Model(&models.User{}).
			Where("mm_enrolled = ? AND mm_enrollment_type = ?", true, enrollment)
		if text := strings.TrimSpace(q.Text); text != "" {
			pattern := "%" + text + "%"
			or := e.db.Where(cols[0]+" LIKE ?", pattern)
			for _, col := range cols[1:] {
				or = or.Or(col+" LIKE ?", pattern)
			}
			db = db.Where(or)
		}
		return db
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, err
	}

	var users []models.User
	err := base().Offset(q.Page * q.Size).Limit(q.Size).Find(&users).Error
	if err != nil {
		return nil, err
	}

	page := &MatchmakingPage{
		Cards:      make([]models.Matchmaking, 0, len(users)),
		Page:       q.Page,
		Size:       q.Size,
		TotalPages: (total + int64(q.Size) - 1) / int64(q.Size),
	}
	for _, u := range users {
		page.Cards = append(page.Cards, u.Matchmaking)
	}
	return page, nil
}
