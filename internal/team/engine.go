// Package team maintains the user/team bidirectional relationship
// under join, create, leave, kick and lock requests. Cross-entity
// operations are sequences of single-row conditional writes, not
// transactions: the resulting windows are an accepted part of the
// contract and dangling references are resolved defensively on read.
package team

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"hackreg/backend/internal/gavel"
	"hackreg/backend/internal/models"
	"hackreg/backend/internal/settings"
)

// Judge is the slice of the external submission system the engine
// needs. Satisfied by *gavel.Client.
type Judge interface {
	CreateTeam(ctx context.Context, req gavel.CreateTeamRequest) (*gavel.TeamResult, error)
	AddMember(ctx context.Context, teamID string, m gavel.Member) (*gavel.MemberResult, error)
	RemoveMember(ctx context.Context, teamID, memberID string) error
}

// Engine coordinates User and Team mutations.
type Engine struct {
	db          *gorm.DB
	settings    *settings.Service
	judge       Judge
	maxTeamSize int

	now func() time.Time
}

func NewEngine(db *gorm.DB, st *settings.Service, judge Judge, maxTeamSize int) *Engine {
	if maxTeamSize <= 0 {
		maxTeamSize = 4
	}
	return &Engine{
		db:          db,
		settings:    st,
		judge:       judge,
		maxTeamSize: maxTeamSize,
		now:         time.Now,
	}
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

// membershipOpen gates create/join for participants who have not been
// admitted: once the application period is over (special window
// included), only admitted users may still form teams. Admitted users
// additionally must not have slept through their confirmation deadline.
func (e *Engine) membershipOpen(user *models.User) error {
	times, err := e.settings.RegistrationTimes()
	if err != nil {
		return err
	}
	now := e.nowMillis()
	specialOpen := user.SpecialRegistration && now < times.TimeCloseSpecial

	if !user.Status.Admitted && now > times.TimeClose && !specialOpen {
		return preconditionf("you haven't been accepted yet and the application period is over")
	}
	if user.Status.Admitted && !user.Status.Confirmed && now >= user.Status.ConfirmBy {
		return preconditionf("your confirmation deadline has passed")
	}
	return nil
}

// CreateTeam creates a new team with the user as leader and sole
// member. Any matchmaking enrollment is cleared: the user is no longer
// searching.
func (e *Engine) CreateTeam(userID uint) (*models.Team, error) {
	user, err := e.userByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.Verified {
		return nil, preconditionf("please verify your email first")
	}
	if user.Status.Declined {
		return nil, preconditionf("you have declined your admission")
	}
	if user.TeamID != nil {
		if _, err := e.teamByID(*user.TeamID); err == nil {
			return nil, preconditionf("you are already in a team")
		}
		// dangling reference, fall through and repair it below
	}
	if err := e.membershipOpen(user); err != nil {
		return nil, err
	}

	// Team row first, then the user row; the writes are deliberately
	// not transactional (see package comment).
	team := models.Team{LeaderID: user.ID}
	if err := e.db.Create(&team).Error; err != nil {
		return nil, err
	}

	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ?", userID, true).
		Updates(e.joinValues(team.ID))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("please verify your email first")
	}
	log.Printf("team: new team %d created by user %d", team.ID, user.ID)
	return &team, nil
}

// JoinTeam adds the user to an existing team. When the team is already
// provisioned in the external submission system the new member is
// registered there too. The roster mutation is applied before the
// external call and is not rolled back on failure; the error is
// surfaced so the caller can retry the registration.
func (e *Engine) JoinTeam(ctx context.Context, userID, teamID uint) (*models.User, error) {
	team, err := e.teamByID(teamID)
	if err != nil {
		return nil, err
	}
	user, err := e.userByID(userID)
	if err != nil {
		return nil, err
	}
	if user.TeamID != nil && *user.TeamID == team.ID {
		return nil, preconditionf("user is already in this team")
	}
	if user.TeamID != nil {
		if _, err := e.teamByID(*user.TeamID); err == nil {
			return nil, preconditionf("you are already in a team")
		}
	}
	if user.Status.Declined {
		return nil, preconditionf("you have declined your admission")
	}

	var size int64
	if err := e.db.Model(&models.User{}).Where("team_id = ?", team.ID).Count(&size).Error; err != nil {
		return nil, err
	}
	if size >= int64(e.maxTeamSize) {
		return nil, preconditionf("team is full")
	}
	if team.TeamLocked {
		return nil, preconditionf("this team is locked")
	}
	if err := e.membershipOpen(user); err != nil {
		return nil, err
	}

	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ?", userID, true).
		Updates(e.joinValues(team.ID))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("please verify your email first")
	}

	if team.GavelID != "" {
		member, err := e.judge.AddMember(ctx, team.GavelID, gavel.Member{
			Name:  user.Profile.Name,
			Email: user.Email,
		})
		if err != nil {
			// Roster already mutated; the external registration is the
			// caller's signal to retry.
			return nil, err
		}
		err = e.db.Model(&models.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
			"gavel_id":    member.ID,
			"gavel_token": member.Token,
		}).Error
		if err != nil {
			return nil, err
		}
	}
	return e.userByID(userID)
}

// LockTeam freezes the team's membership. Only the leader may lock, and
// the submitted track interests are stored atomically with the flag.
func (e *Engine) LockTeam(requesterID uint, trackInterests string) (*models.Team, error) {
	user, err := e.userByID(requesterID)
	if err != nil {
		return nil, err
	}
	team, err := e.teamOf(user)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != user.ID {
		return nil, preconditionf("only the team leader can lock in the team")
	}

	res := e.db.Model(&models.Team{}).
		Where("id = ? AND team_locked = ?", team.ID, false).
		Updates(map[string]interface{}{
			"team_locked":     true,
			"track_interests": trackInterests,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("team already locked")
	}
	log.Printf("team: team %d locked by user %d", team.ID, user.ID)
	return e.teamByID(team.ID)
}

// Priorities are the ranked track wishes a leader submits.
type Priorities struct {
	First  string `json:"first_priority_track"`
	Second string `json:"second_priority_track"`
	Third  string `json:"third_priority_track"`
}

// UpdatePriorities stores the team's ranked track wishes. Leader only;
// unrestricted by the lock state.
func (e *Engine) UpdatePriorities(requesterID uint, p Priorities) (*models.Team, error) {
	user, err := e.userByID(requesterID)
	if err != nil {
		return nil, err
	}
	team, err := e.teamOf(user)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != user.ID {
		return nil, preconditionf("only the team leader can update track priorities")
	}

	err = e.db.Model(&models.Team{}).Where("id = ?", team.ID).Updates(map[string]interface{}{
		"first_priority_track":  p.First,
		"second_priority_track": p.Second,
		"third_priority_track":  p.Third,
	}).Error
	if err != nil {
		return nil, err
	}
	return e.teamByID(team.ID)
}

// AssignTrack sets the final track of a team. Organizer-side.
func (e *Engine) AssignTrack(teamID uint, track string) (*models.Team, error) {
	res := e.db.Model(&models.Team{}).Where("id = ?", teamID).Update("assigned_track", track)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrTeamNotFound
	}
	return e.teamByID(teamID)
}

// KickFromTeam removes the member with the given participant id from
// the requester's team. Leader only; locked teams cannot lose members
// this way.
func (e *Engine) KickFromTeam(requesterID uint, targetPID string) (*models.Team, error) {
	user, err := e.userByID(requesterID)
	if err != nil {
		return nil, err
	}
	team, err := e.teamOf(user)
	if err != nil {
		return nil, err
	}
	if team.LeaderID != user.ID {
		return nil, preconditionf("you're not the team leader")
	}
	if team.TeamLocked {
		return nil, preconditionf("this team is locked")
	}
	if user.PID == targetPID {
		return nil, preconditionf("the leader cannot kick themselves")
	}

	res := e.db.Model(&models.User{}).
		Where("pid = ? AND team_id = ?", targetPID, team.ID).
		Updates(e.leaveValues())
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user not found in this team")
	}
	return e.teamByID(team.ID)
}

// LeaveTeam removes the user from their team. Leadership passes to the
// longest-standing remaining member; an emptied team is deleted. When
// both the team and the user are registered with the external
// submission system the user is deregistered there first, and a
// deregistration failure aborts the leave entirely. A team that is
// already gone is not an error: the user's side is cleaned up anyway.
func (e *Engine) LeaveTeam(ctx context.Context, userID uint) (*models.User, error) {
	user, err := e.userByID(userID)
	if err != nil {
		return nil, err
	}
	if user.TeamID == nil {
		return e.clearUserTeam(userID)
	}

	var team models.Team
	err = e.db.First(&team, *user.TeamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("team: user %d references missing team %d, clearing", userID, *user.TeamID)
		return e.clearUserTeam(userID)
	}
	if err != nil {
		return nil, err
	}

	if team.GavelID != "" && user.GavelID != "" {
		if err := e.judge.RemoveMember(ctx, team.GavelID, user.GavelID); err != nil {
			return nil, err
		}
	}

	remaining, err := e.members(team.ID, userID)
	if err != nil {
		return nil, err
	}

	// Team row first, then the user row.
	if len(remaining) == 0 {
		if err := e.db.Delete(&models.Team{}, team.ID).Error; err != nil {
			return nil, err
		}
		log.Printf("team: deleted empty team %d", team.ID)
	} else if team.LeaderID == userID {
		newLeader := remaining[0].ID
		err := e.db.Model(&models.Team{}).Where("id = ?", team.ID).
			Update("leader_id", newLeader).Error
		if err != nil {
			return nil, err
		}
		log.Printf("team: leadership of team %d passed to user %d", team.ID, newLeader)
	}

	return e.clearUserTeam(userID)
}

// Teammates lists the members of the user's team in join order.
func (e *Engine) Teammates(userID uint) ([]models.User, error) {
	user, err := e.userByID(userID)
	if err != nil {
		return nil, err
	}
	if user.TeamID == nil {
		return nil, preconditionf("you're not on a team")
	}
	return e.members(*user.TeamID, 0)
}

// TeamInfo returns the user's team record.
func (e *Engine) TeamInfo(userID uint) (*models.Team, error) {
	user, err := e.userByID(userID)
	if err != nil {
		return nil, err
	}
	return e.teamOf(user)
}

// GavelToken returns the user's submission-system token, lazily
// provisioning the whole team on first request. Idempotent: a user who
// already holds a token gets it back without any external call.
func (e *Engine) GavelToken(ctx context.Context, userID uint) (string, error) {
	user, err := e.userByID(userID)
	if err != nil {
		return "", err
	}
	if user.GavelToken != "" {
		return user.GavelToken, nil
	}
	team, err := e.teamOf(user)
	if err != nil {
		return "", err
	}

	if team.GavelID == "" {
		return e.provisionTeam(ctx, team, user)
	}

	member, err := e.judge.AddMember(ctx, team.GavelID, gavel.Member{
		Name:  user.Profile.Name,
		Email: user.Email,
	})
	if err != nil {
		return "", err
	}
	err = e.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"gavel_id":    member.ID,
		"gavel_token": member.Token,
	}).Error
	if err != nil {
		return "", err
	}
	return member.Token, nil
}

// provisionTeam registers the whole team with the submission system and
// distributes the per-member tokens.
func (e *Engine) provisionTeam(ctx context.Context, team *models.Team, requester *models.User) (string, error) {
	members, err := e.members(team.ID, 0)
	if err != nil {
		return "", err
	}

	req := gavel.CreateTeamRequest{Phone: requester.Confirmation.PhoneNumber}
	for _, m := range members {
		req.Members = append(req.Members, gavel.Member{Name: m.Profile.Name, Email: m.Email})
	}

	result, err := e.judge.CreateTeam(ctx, req)
	if err != nil {
		return "", err
	}

	// Claim the correlation id at most once; a concurrent request that
	// lost the race must retry and will hit the idempotent path.
	res := e.db.Model(&models.Team{}).
		Where("id = ? AND gavel_id = ?", team.ID, "").
		Update("gavel_id", result.TeamID)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return "", preconditionf("team was just provisioned by a teammate, please retry")
	}

	token := ""
	for _, m := range result.Members {
		err := e.db.Model(&models.User{}).
			Where("email = ? AND team_id = ?", m.Email, team.ID).
			Updates(map[string]interface{}{
				"gavel_id":    m.ID,
				"gavel_token": m.Token,
			}).Error
		if err != nil {
			return "", err
		}
		if m.Email == requester.Email {
			token = m.Token
		}
	}
	if token == "" {
		return "", errors.New("submission system did not return a token for the requester")
	}
	return token, nil
}

// members returns the team roster in join order, optionally excluding
// one user.
func (e *Engine) members(teamID uint, exclude uint) ([]models.User, error) {
	var users []models.User
	q := e.db.Where("team_id = ?", teamID).Order("team_joined_at, id")
	if exclude != 0 {
		q = q.Where("id <> ?", exclude)
	}
	err := q.Find(&users).Error
	return users, err
}

// clearUserTeam resets the departing user's team reference and
// matchmaking sub-record.
func (e *Engine) clearUserTeam(userID uint) (*models.User, error) {
	err := e.db.Model(&models.User{}).Where("id = ?", userID).
		Updates(e.leaveValues()).Error
	if err != nil {
		return nil, err
	}
	return e.userByID(userID)
}

func (e *Engine) joinValues(teamID uint) map[string]interface{} {
	return map[string]interface{}{
		"team_id":            teamID,
		"team_joined_at":     e.nowMillis(),
		"mm_enrolled":        false,
		"mm_enrollment_type": "",
	}
}

func (e *Engine) leaveValues() map[string]interface{} {
	return map[string]interface{}{
		"team_id":                        nil,
		"team_joined_at":                 0,
		"mm_enrolled":                    false,
		"mm_enrollment_type":             "",
		"mm_team_most_interesting_track": "",
		"mm_team_top_challenges":         "",
		"mm_team_roles":                  "",
		"mm_team_slack_handle":           "",
		"mm_team_free_text":              "",
		"gavel_id":                       "",
		"gavel_token":                    "",
	}
}

func (e *Engine) userByID(id uint) (*models.User, error) {
	var user models.User
	err := e.db.First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (e *Engine) teamByID(id uint) (*models.Team, error) {
	var team models.Team
	err := e.db.First(&team, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTeamNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// teamOf resolves the user's team, treating a dangling reference as
// not found.
func (e *Engine) teamOf(user *models.User) (*models.Team, error) {
	if user.TeamID == nil {
		return nil, ErrTeamNotFound
	}
	return e.teamByID(*user.TeamID)
}
