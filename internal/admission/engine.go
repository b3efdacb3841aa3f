// Package admission implements the participant state machine: every
// transition is a conditional update whose predicate encodes the guard,
// so a transition either applies atomically or reports a precondition
// failure without mutating anything.
package admission

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"hackreg/backend/internal/mailer"
	"hackreg/backend/internal/models"
	"hackreg/backend/internal/settings"
	"hackreg/backend/pkg/jwt"
	"hackreg/backend/pkg/wordid"
)

// TeamLeaver forces a participant out of their team. Wired to the team
// membership engine at startup; declared here to keep the dependency
// pointing one way.
type TeamLeaver interface {
	LeaveTeam(ctx context.Context, userID uint) (*models.User, error)
}

// Engine applies admission transitions against the user store.
type Engine struct {
	db       *gorm.DB
	settings *settings.Service
	mailer   mailer.Mailer
	ids      *wordid.Generator
	teams    TeamLeaver

	now func() time.Time
}

func NewEngine(db *gorm.DB, st *settings.Service, m mailer.Mailer, ids *wordid.Generator) *Engine {
	return &Engine{
		db:       db,
		settings: st,
		mailer:   m,
		ids:      ids,
		now:      time.Now,
	}
}

// SetTeamLeaver wires the team membership engine used by the decline
// cascade.
func (e *Engine) SetTeamLeaver(t TeamLeaver) {
	e.teams = t
}

func (e *Engine) nowMillis() int64 {
	return e.now().UnixMilli()
}

// registrationOpen checks the registration window. Specially registered
// users are gated by the special close time instead of the normal one.
func (e *Engine) registrationOpen(special bool) error {
	times, err := e.settings.RegistrationTimes()
	if err != nil {
		return err
	}
	now := e.nowMillis()
	if now < times.TimeOpen {
		return preconditionf("registration opens %s", time.UnixMilli(times.TimeOpen).Format(time.RFC1123))
	}
	specialOpen := special && now < times.TimeCloseSpecial
	if now > times.TimeClose && !specialOpen {
		return preconditionf("sorry, registration is closed")
	}
	return nil
}

// Register creates a participant inside the registration window. The
// human-facing id is derived from the current registration count, so
// ids are reproducible given the same seed and sequence.
func (e *Engine) Register(email, password, nickname string, special bool) (*models.User, error) {
	if len(password) < 6 {
		return nil, preconditionf("password must be 6 or more characters")
	}
	if err := e.registrationOpen(special); err != nil {
		return nil, err
	}

	email = strings.ToLower(email)

	var existing models.User
	err := e.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, preconditionf("an account for this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var count int64
	if err := e.db.Model(&models.User{}).Count(&count).Error; err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		PID:                 e.ids.ID(int(count)),
		Email:               email,
		Nickname:            nickname,
		PasswordHash:        string(hash),
		SpecialRegistration: special,
	}
	if err := e.db.Create(&user).Error; err != nil {
		return nil, err
	}

	if token, err := jwt.GenerateVerificationToken(user.Email); err != nil {
		log.Printf("admission: could not issue verification token for %s: %v", user.Email, err)
	} else {
		e.mailer.SendVerificationEmail(&user, token)
	}
	return &user, nil
}

// VerifyEmail marks the address carried by a verification token as
// confirmed.
func (e *Engine) VerifyEmail(token string) (*models.User, error) {
	email, err := jwt.ParseVerificationToken(token)
	if err != nil {
		return nil, preconditionf("invalid verification token")
	}
	res := e.db.Model(&models.User{}).
		Where("email = ?", strings.ToLower(email)).
		Update("verified", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return e.byEmail(strings.ToLower(email))
}

// SubmitProfile stores the application answers and marks the profile
// completed. Requires a verified account and an open window (special
// applicants may still submit until the special close). The first
// submission triggers exactly one application-received notification.
func (e *Engine) SubmitProfile(id uint, p models.Profile, special bool) (*models.User, error) {
	if err := e.registrationOpen(special); err != nil {
		return nil, err
	}

	user, err := e.byID(id)
	if err != nil {
		return nil, err
	}
	firstSubmission := !user.Profile.SubmittedApplication

	values := profileValues(p)
	values["profile_submitted_application"] = true
	values["status_completed_profile"] = true

	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ?", id, true).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("please verify your email before applying")
	}

	user, err = e.byID(id)
	if err != nil {
		return nil, err
	}
	if firstSubmission {
		e.mailer.SendApplicationEmail(user)
	}
	return user, nil
}

// AdminUpdateProfile is the window-free variant used by organizers.
func (e *Engine) AdminUpdateProfile(id uint, p models.Profile) (*models.User, error) {
	values := profileValues(p)
	values["status_completed_profile"] = true

	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ?", id, true).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user is not verified")
	}
	return e.byID(id)
}

// UpdateEmail changes the account address, rejecting duplicates.
func (e *Engine) UpdateEmail(id uint, email string) (*models.User, error) {
	email = strings.ToLower(email)

	var existing models.User
	err := e.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, preconditionf("user with this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	res := e.db.Model(&models.User{}).Where("id = ?", id).Update("email", email)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return e.byID(id)
}

// UpdateMatchmakingProfile stores the matchmaking card of a verified
// participant.
func (e *Engine) UpdateMatchmakingProfile(id uint, mm models.Matchmaking) (*models.User, error) {
	values := matchmakingValues(mm)
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ?", id, true).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("please verify your email first")
	}
	return e.byID(id)
}

// ExitSearch withdraws a participant from the matchmaking directory.
func (e *Engine) ExitSearch(id uint) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND mm_enrolled = ?", id, true).
		Updates(map[string]interface{}{
			"mm_enrolled":        false,
			"mm_enrollment_type": "",
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("you are not enrolled in matchmaking")
	}
	return e.byID(id)
}

// TeamInSearch reports whether anyone on the user's team is enrolled in
// matchmaking.
func (e *Engine) TeamInSearch(user *models.User) (bool, error) {
	if user.TeamID == nil {
		return false, nil
	}
	var count int64
	err := e.db.Model(&models.User{}).
		Where("team_id = ? AND mm_enrolled = ?", *user.TeamID, true).
		Count(&count).Error
	return count > 0, err
}

// SubmitConfirmation confirms attendance. Idempotent once confirmed:
// the deadline check only applies to participants who have not
// confirmed yet. When the confirming user leads a team, the submitted
// track priorities are propagated onto the team.
func (e *Engine) SubmitConfirmation(id uint, conf models.Confirmation) (*models.User, error) {
	user, err := e.byID(id)
	if err != nil {
		return nil, err
	}
	if e.nowMillis() >= user.Status.ConfirmBy && !user.Status.Confirmed {
		return nil, preconditionf("you've missed the confirmation deadline")
	}

	values := confirmationValues(conf)
	values["status_confirmed"] = true

	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_admitted = ? AND status_declined = ?",
			id, true, true, false).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("only admitted participants can confirm")
	}

	user, err = e.byID(id)
	if err != nil {
		return nil, err
	}
	e.mailer.SendConfirmationEmail(user)

	if user.TeamID != nil {
		var team models.Team
		err := e.db.First(&team, *user.TeamID).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// dangling reference, nothing to propagate
		case err != nil:
			return nil, err
		case team.LeaderID == user.ID:
			err = e.db.Model(&team).Updates(map[string]interface{}{
				"first_priority_track":  conf.FirstPriorityTrack,
				"second_priority_track": conf.SecondPriorityTrack,
				"third_priority_track":  conf.ThirdPriorityTrack,
			}).Error
			if err != nil {
				return nil, err
			}
		}
	}
	return user, nil
}

// Decline turns down an admission. Declining is terminal for team
// actions, so a successful decline forces the participant out of their
// team.
func (e *Engine) Decline(ctx context.Context, id uint) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_admitted = ? AND status_declined = ?",
			id, true, true, false).
		Updates(map[string]interface{}{
			"status_confirmed": false,
			"status_declined":  true,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("only admitted participants can decline")
	}

	user, err := e.byID(id)
	if err != nil {
		return nil, err
	}
	if user.TeamID != nil && e.teams != nil {
		if user, err = e.teams.LeaveTeam(ctx, id); err != nil {
			return nil, err
		}
	}
	e.mailer.SendDeclinedEmail(user)
	return user, nil
}

// SubmitReimbursement stores a travel reimbursement application before
// the reimbursement deadline.
func (e *Engine) SubmitReimbursement(id uint, r models.Reimbursement) (*models.User, error) {
	times, err := e.settings.RegistrationTimes()
	if err != nil {
		return nil, err
	}
	if e.nowMillis() > times.TimeTR {
		return nil, preconditionf("you've missed the travel reimbursement deadline")
	}

	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_admitted = ? AND status_declined = ?",
			id, true, true, false).
		Updates(map[string]interface{}{
			"reimbursement_iban":           r.Iban,
			"reimbursement_swift":          r.Swift,
			"reimbursement_receipt_total":  r.ReceiptTotal,
			"status_reimbursement_applied": true,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("only admitted participants can apply for reimbursement")
	}
	return e.byID(id)
}

// UpdateReceiptFile records an uploaded receipt file name.
func (e *Engine) UpdateReceiptFile(id uint, fileName string) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_admitted = ? AND status_declined = ?",
			id, true, true, false).
		Updates(map[string]interface{}{
			"reimbursement_file_name":     fileName,
			"reimbursement_file_uploaded": true,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("only admitted participants can upload receipts")
	}
	return e.byID(id)
}

// ResendVerification issues a fresh verification email for an
// unverified account.
func (e *Engine) ResendVerification(id uint) error {
	var user models.User
	err := e.db.Where("id = ? AND verified = ?", id, false).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	token, err := jwt.GenerateVerificationToken(user.Email)
	if err != nil {
		return err
	}
	e.mailer.SendVerificationEmail(&user, token)
	return nil
}

// SendPasswordReset emails a reset token to the account, if it exists.
func (e *Engine) SendPasswordReset(email string) error {
	user, err := e.byEmail(strings.ToLower(email))
	if err != nil {
		return err
	}
	token, err := jwt.GenerateResetToken(user.ID)
	if err != nil {
		return err
	}
	e.mailer.SendPasswordResetEmail(user, token)
	return nil
}

// ResetPassword sets a new password from a reset token and notifies
// the account owner.
func (e *Engine) ResetPassword(token, password string) error {
	if len(password) < 6 {
		return preconditionf("password must be 6 or more characters")
	}
	id, err := jwt.ParseUserToken(token, jwt.KindReset)
	if err != nil {
		return preconditionf("invalid or expired reset token")
	}
	if err := e.setPassword(id, password); err != nil {
		return err
	}
	user, err := e.byID(id)
	if err != nil {
		return err
	}
	e.mailer.SendPasswordChangedEmail(user)
	return nil
}

// ChangePassword sets a new password after checking the old one.
func (e *Engine) ChangePassword(id uint, oldPassword, newPassword string) error {
	if len(newPassword) < 6 {
		return preconditionf("password must be 6 or more characters")
	}
	user, err := e.byID(id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return preconditionf("incorrect password")
	}
	return e.setPassword(id, newPassword)
}

func (e *Engine) setPassword(id uint, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	res := e.db.Model(&models.User{}).Where("id = ?", id).Update("password_hash", string(hash))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (e *Engine) byID(id uint) (*models.User, error) {
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

func (e *Engine) byEmail(email string) (*models.User, error) {
	var user models.User
	err := e.db.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// teamLocked resolves the derived read-only flag returned alongside
// several admin transitions. A dangling team reference reads as
// unlocked.
func (e *Engine) teamLocked(user *models.User) (bool, error) {
	if user.TeamID == nil {
		return false, nil
	}
	var team models.Team
	err := e.db.First(&team, *user.TeamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return team.TeamLocked, nil
}

func profileValues(p models.Profile) map[string]interface{} {
	accepted := p.AcceptedReimbursementClass
	if accepted == "" {
		accepted = models.ReimbursementNone
	}
	return map[string]interface{}{
		"profile_name":                         p.Name,
		"profile_gender":                       p.Gender,
		"profile_school":                       p.School,
		"profile_home_country":                 p.HomeCountry,
		"profile_travel_from_country":          p.TravelFromCountry,
		"profile_travel_from_city":             p.TravelFromCity,
		"profile_most_interesting_track":       p.MostInterestingTrack,
		"profile_team_selection":               p.TeamSelection,
		"profile_needs_reimbursement":          p.NeedsReimbursement,
		"profile_needs_visa":                   p.NeedsVisa,
		"profile_applied_reimbursement_class":  p.AppliedReimbursementClass,
		"profile_accepted_reimbursement_class": accepted,
		"profile_terminal_essay":               p.TerminalEssay,
	}
}

func confirmationValues(c models.Confirmation) map[string]interface{} {
	return map[string]interface{}{
		"confirmation_phone_number":          c.PhoneNumber,
		"confirmation_shirt_size":            c.ShirtSize,
		"confirmation_dietary_restrictions":  c.DietaryRestrictions,
		"confirmation_host_needed_fri":       c.HostNeededFri,
		"confirmation_host_needed_sat":       c.HostNeededSat,
		"confirmation_wants_hardware":        c.WantsHardware,
		"confirmation_first_priority_track":  c.FirstPriorityTrack,
		"confirmation_second_priority_track": c.SecondPriorityTrack,
		"confirmation_third_priority_track":  c.ThirdPriorityTrack,
	}
}

func matchmakingValues(mm models.Matchmaking) map[string]interface{} {
	return map[string]interface{}{
		"mm_enrolled":                           mm.Enrolled,
		"mm_enrollment_type":                    mm.EnrollmentType,
		"mm_individual_most_interesting_track":  mm.Individual.MostInterestingTrack,
		"mm_individual_role":                    mm.Individual.Role,
		"mm_individual_slack_handle":            mm.Individual.SlackHandle,
		"mm_individual_skills":                  mm.Individual.Skills,
		"mm_individual_free_text":               mm.Individual.FreeText,
		"mm_team_most_interesting_track":        mm.Team.MostInterestingTrack,
		"mm_team_top_challenges":                mm.Team.TopChallenges,
		"mm_team_roles":                         mm.Team.Roles,
		"mm_team_slack_handle":                  mm.Team.SlackHandle,
		"mm_team_free_text":                     mm.Team.FreeText,
	}
}
