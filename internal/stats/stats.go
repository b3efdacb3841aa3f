// Package stats maintains periodically refreshed registration
// statistics. Snapshots are computed from full table scans and held in
// an in-memory cache, so reads never touch the database and may lag
// reality by up to one refresh interval.
package stats

import (
	"log"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"hackreg/backend/internal/models"
	"hackreg/backend/internal/settings"
)

const (
	userRefreshInterval = 10 * time.Minute
	teamRefreshInterval = 400 * time.Second
)

// GenderCounts splits a count by the profile gender field.
type GenderCounts struct {
	M int `json:"M"`
	F int `json:"F"`
	O int `json:"O"`
	N int `json:"N"`
}

// TeamSelectionCounts splits applicants by how they want to participate.
type TeamSelectionCounts struct {
	Alone       int `json:"alone"`
	TeamOrAlone int `json:"team_or_alone"`
	OnlyTeam    int `json:"only_team"`
}

// SchoolStats aggregates per email domain.
type SchoolStats struct {
	Email     string `json:"email"`
	Submitted int    `json:"submitted"`
	Admitted  int    `json:"admitted"`
	Confirmed int    `json:"confirmed"`
	Declined  int    `json:"declined"`
}

// DietaryRestriction is one restriction with its occurrence count.
type DietaryRestriction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ClassCounts splits a count by travel reimbursement class.
type ClassCounts struct {
	Finland      int `json:"finland"`
	Baltics      int `json:"baltics"`
	Nordics      int `json:"nordics"`
	Europe       int `json:"europe"`
	RestOfWorld  int `json:"rest_of_world"`
	GoldenTicket int `json:"golden_ticket"`
	Rejected     int `json:"rejected"`
}

// UserStats is a point-in-time aggregate over all participants.
type UserStats struct {
	LastUpdated time.Time `json:"last_updated"`
	Total       int       `json:"total"`

	Gender          GenderCounts   `json:"gender"`
	Tracks          map[string]int `json:"tracks"`
	AppliedTracks   map[string]int `json:"applied_tracks"`
	AdmittedTracks  map[string]int `json:"admitted_tracks"`
	ConfirmedTracks map[string]int `json:"confirmed_tracks"`
	Schools         []SchoolStats  `json:"schools"`

	TeamSelection TeamSelectionCounts `json:"team_selection"`

	Verified     int `json:"verified"`
	Submitted    int `json:"submitted"`
	Rated        int `json:"rated"`
	Rated5Stars  int `json:"rated_5_stars"`
	Rated4Stars  int `json:"rated_4_stars"`
	Rated3Stars  int `json:"rated_3_stars"`
	Rated2Stars  int `json:"rated_2_stars"`
	Rated1Stars  int `json:"rated_1_stars"`
	SoftAdmitted int `json:"soft_admitted"`
	Admitted     int `json:"admitted"`
	Confirmed    int `json:"confirmed"`
	Declined     int `json:"declined"`
	Rejected     int `json:"rejected"`
	SpecialReg   int `json:"special_reg"`
	CheckedIn    int `json:"checked_in"`

	ConfirmedGender GenderCounts `json:"confirmed_gender"`

	ShirtSizes          map[string]int       `json:"shirt_sizes"`
	DietaryRestrictions []DietaryRestriction `json:"dietary_restrictions"`
	WantsHardware       int                  `json:"wants_hardware"`

	HostNeededFri    int          `json:"host_needed_fri"`
	HostNeededSat    int          `json:"host_needed_sat"`
	HostNeededUnique int          `json:"host_needed_unique"`
	HostNeededGender GenderCounts `json:"host_needed_gender"`

	ReimbursementTotal int `json:"reimbursement_total"`

	RequestedClasses ClassCounts `json:"requested_classes"`
	AcceptedClasses  ClassCounts `json:"accepted_classes"`
	ConfirmedClasses ClassCounts `json:"confirmed_classes"`

	// Monetary totals derived from the per-class amounts in settings.
	AcceptedReimbursementAmount  int `json:"accepted_reimbursement_amount"`
	ConfirmedReimbursementAmount int `json:"confirmed_reimbursement_amount"`
}

// TeamStats is a point-in-time aggregate over all teams.
type TeamStats struct {
	LastUpdated time.Time `json:"last_updated"`
	Total       int       `json:"total"`
	Locked      int       `json:"locked"`

	// Participants per assigned track.
	TrackAssignment map[string]int `json:"track_assignment"`
}

var recognizedShirtSizes = []string{
	"XS", "S", "M", "L", "XL", "XXL",
	"WXS", "WS", "WM", "WL", "WXL", "WXXL",
	"None",
}

// Aggregator owns the cached snapshots and the refresh timers.
type Aggregator struct {
	db       *gorm.DB
	settings *settings.Service

	mu    sync.RWMutex
	users UserStats
	teams TeamStats

	stop chan struct{}
	done chan struct{}
}

func NewAggregator(db *gorm.DB, st *settings.Service) *Aggregator {
	return &Aggregator{
		db:       db,
		settings: st,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start computes both snapshots once, then refreshes them on their own
// timers until Stop is called.
func (a *Aggregator) Start() {
	if err := a.RefreshUserStats(); err != nil {
		log.Printf("stats: initial user stats refresh failed: %v", err)
	}
	if err := a.RefreshTeamStats(); err != nil {
		log.Printf("stats: initial team stats refresh failed: %v", err)
	}
	go a.run()
}

func (a *Aggregator) run() {
	defer close(a.done)
	userTicker := time.NewTicker(userRefreshInterval)
	teamTicker := time.NewTicker(teamRefreshInterval)
	defer userTicker.Stop()
	defer teamTicker.Stop()

	for {
		select {
		case <-userTicker.C:
			if err := a.RefreshUserStats(); err != nil {
				log.Printf("stats: user stats refresh failed: %v", err)
			}
		case <-teamTicker.C:
			if err := a.RefreshTeamStats(); err != nil {
				log.Printf("stats: team stats refresh failed: %v", err)
			}
		case <-a.stop:
			return
		}
	}
}

// Stop halts the refresh timers and waits for the loop to exit.
func (a *Aggregator) Stop() {
	close(a.stop)
	<-a.done
}

// UserStats returns the cached participant snapshot.
func (a *Aggregator) UserStats() UserStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.users
}

// TeamStats returns the cached team snapshot.
func (a *Aggregator) TeamStats() TeamStats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.teams
}

// RefreshUserStats recomputes the participant snapshot from a full
// scan.
func (a *Aggregator) RefreshUserStats() error {
	cfg, err := a.settings.Public()
	if err != nil {
		return err
	}
	var users []models.User
	if err := a.db.Find(&users).Error; err != nil {
		return err
	}

	s := UserStats{
		Total:           len(users),
		Tracks:          map[string]int{},
		AppliedTracks:   map[string]int{},
		AdmittedTracks:  map[string]int{},
		ConfirmedTracks: map[string]int{},
		ShirtSizes:      map[string]int{},
	}
	for _, size := range recognizedShirtSizes {
		s.ShirtSizes[size] = 0
	}

	schools := map[string]*SchoolStats{}
	restrictions := map[string]int{}

	for i := range users {
		u := &users[i]
		domain := emailDomain(u.Email)

		countGender(&s.Gender, u.Profile.Gender, true)

		if track := u.Profile.MostInterestingTrack; track != "" {
			s.Tracks[track]++
			switch {
			case u.Status.Confirmed:
				s.ConfirmedTracks[track]++
			case u.Status.Admitted && u.Status.CompletedProfile:
				s.AdmittedTracks[track]++
			case u.Status.CompletedProfile:
				s.AppliedTracks[track]++
			}
		}

		countIf(&s.Verified, u.Verified)
		countIf(&s.Submitted, u.Status.CompletedProfile)
		countIf(&s.Rated, u.Status.Rating > 0)
		countIf(&s.Rated5Stars, u.Status.Rating == 5)
		countIf(&s.Rated4Stars, u.Status.Rating == 4)
		countIf(&s.Rated3Stars, u.Status.Rating == 3)
		countIf(&s.Rated2Stars, u.Status.Rating == 2)
		countIf(&s.Rated1Stars, u.Status.Rating == 1)
		countIf(&s.SoftAdmitted, u.Status.SoftAdmitted)
		countIf(&s.Admitted, u.Status.Admitted)
		countIf(&s.Confirmed, u.Status.Confirmed)
		countIf(&s.Declined, u.Status.Declined)
		countIf(&s.Rejected, u.Status.Rejected)
		countIf(&s.SpecialReg, u.SpecialRegistration)
		countIf(&s.CheckedIn, u.Status.CheckedIn)

		countGender(&s.ConfirmedGender, u.Profile.Gender, u.Status.Confirmed)

		countIf(&s.TeamSelection.Alone, u.Profile.TeamSelection == "alone")
		countIf(&s.TeamSelection.TeamOrAlone, u.Profile.TeamSelection == "teamOrAlone")
		countIf(&s.TeamSelection.OnlyTeam, u.Profile.TeamSelection == "onlyTeam")

		countIf(&s.ReimbursementTotal, u.Profile.NeedsReimbursement)
		countClass(&s.RequestedClasses, u.Profile.AppliedReimbursementClass)
		if !u.Status.Declined {
			countClass(&s.AcceptedClasses, u.Profile.AcceptedReimbursementClass)
			s.AcceptedReimbursementAmount += classAmount(cfg.Reimbursement, u.Profile.AcceptedReimbursementClass)
			if u.Status.Confirmed {
				countClass(&s.ConfirmedClasses, u.Profile.AcceptedReimbursementClass)
				s.ConfirmedReimbursementAmount += classAmount(cfg.Reimbursement, u.Profile.AcceptedReimbursementClass)
			}
		}

		if _, ok := s.ShirtSizes[u.Confirmation.ShirtSize]; ok {
			s.ShirtSizes[u.Confirmation.ShirtSize]++
		}
		countIf(&s.WantsHardware, u.Confirmation.WantsHardware)

		hostNeeded := u.Confirmation.HostNeededFri || u.Confirmation.HostNeededSat
		countIf(&s.HostNeededFri, u.Confirmation.HostNeededFri)
		countIf(&s.HostNeededSat, u.Confirmation.HostNeededSat)
		countIf(&s.HostNeededUnique, hostNeeded)
		countGender(&s.HostNeededGender, u.Profile.Gender, hostNeeded)

		for _, r := range strings.Split(u.Confirmation.DietaryRestrictions, ",") {
			if r = strings.TrimSpace(r); r != "" {
				restrictions[r]++
			}
		}

		school, ok := schools[domain]
		if !ok {
			school = &SchoolStats{Email: domain}
			schools[domain] = school
		}
		countIf(&school.Submitted, u.Status.CompletedProfile)
		countIf(&school.Admitted, u.Status.Admitted)
		countIf(&school.Confirmed, u.Status.Confirmed)
		countIf(&school.Declined, u.Status.Declined)
	}

	for name, count := range restrictions {
		s.DietaryRestrictions = append(s.DietaryRestrictions, DietaryRestriction{Name: name, Count: count})
	}
	for _, school := range schools {
		s.Schools = append(s.Schools, *school)
	}
	s.LastUpdated = time.Now()

	a.mu.Lock()
	a.users = s
	a.mu.Unlock()
	log.Printf("stats: user stats updated, %d participants", s.Total)
	return nil
}

// RefreshTeamStats recomputes the team snapshot.
func (a *Aggregator) RefreshTeamStats() error {
	var teams []models.Team
	if err := a.db.Preload("Members").Find(&teams).Error; err != nil {
		return err
	}

	s := TeamStats{
		Total:           len(teams),
		TrackAssignment: map[string]int{},
	}
	for i := range teams {
		if teams[i].TeamLocked {
			s.Locked++
		}
		if track := teams[i].AssignedTrack; track != "" {
			s.TrackAssignment[track] += len(teams[i].Members)
		}
	}
	s.LastUpdated = time.Now()

	a.mu.Lock()
	a.teams = s
	a.mu.Unlock()
	log.Printf("stats: team stats updated, %d teams", s.Total)
	return nil
}

func emailDomain(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[i+1:]
	}
	return email
}

func countIf(dst *int, cond bool) {
	if cond {
		*dst++
	}
}

func countGender(g *GenderCounts, gender string, cond bool) {
	if !cond {
		return
	}
	switch gender {
	case "M":
		g.M++
	case "F":
		g.F++
	case "O":
		g.O++
	case "N":
		g.N++
	}
}

func countClass(c *ClassCounts, class models.ReimbursementClass) {
	switch class {
	case models.ReimbursementFinland:
		c.Finland++
	case models.ReimbursementBaltics:
		c.Baltics++
	case models.ReimbursementNordics:
		c.Nordics++
	case models.ReimbursementEurope:
		c.Europe++
	case models.ReimbursementRestOfWorld:
		c.RestOfWorld++
	case models.ReimbursementGoldenTicket:
		c.GoldenTicket++
	case models.ReimbursementRejected:
		c.Rejected++
	}
}

func classAmount(amounts models.ReimbursementAmounts, class models.ReimbursementClass) int {
	switch class {
	case models.ReimbursementFinland:
		return amounts.Finland
	case models.ReimbursementBaltics:
		return amounts.Baltics
	case models.ReimbursementNordics:
		return amounts.Nordics
	case models.ReimbursementEurope:
		return amounts.Europe
	case models.ReimbursementRestOfWorld:
		return amounts.RestOfWorld
	case models.ReimbursementGoldenTicket:
		return amounts.GoldenTicket
	default:
		return 0
	}
}
