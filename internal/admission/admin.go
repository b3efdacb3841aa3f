package admission

import (
	"gorm.io/gorm"

	"hackreg/backend/internal/models"
)

// Result pairs a user with the derived team-lock flag several admin
// views need next to the record.
type Result struct {
	User       *models.User `json:"user"`
	TeamLocked bool         `json:"team_locked"`
}

func (e *Engine) result(id uint) (*Result, error) {
	user, err := e.byID(id)
	if err != nil {
		return nil, err
	}
	locked, err := e.teamLocked(user)
	if err != nil {
		return nil, err
	}
	return &Result{User: user, TeamLocked: locked}, nil
}

// SoftAdmit toggles the preliminary admit decision and records who made
// it. Requires a verified, non-rejected participant.
func (e *Engine) SoftAdmit(id uint, adminEmail string, alreadySoftAdmitted bool) (*Result, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_rejected = ?", id, true, false).
		Updates(map[string]interface{}{
			"status_soft_admitted": !alreadySoftAdmitted,
			"status_admitted_by":   adminEmail,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be verified and not rejected")
	}
	return e.result(id)
}

// Admit finalizes admission for a soft-admitted participant. The
// confirmation deadline is the normal one while it is still ahead,
// otherwise the special one. A terminal-track applicant gets the
// differentiated notification.
func (e *Engine) Admit(id uint) (*Result, error) {
	times, err := e.settings.RegistrationTimes()
	if err != nil {
		return nil, err
	}
	confirmBy := times.TimeConfirm
	if times.TimeConfirm < e.nowMillis() {
		confirmBy = times.TimeConfirmSpecial
	}

	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_soft_admitted = ? AND status_rejected = ?",
			id, true, true, false).
		Updates(map[string]interface{}{
			"status_admitted":   true,
			"status_confirm_by": confirmBy,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be soft admitted, verified and not rejected")
	}

	out, err := e.result(id)
	if err != nil {
		return nil, err
	}
	if out.User.Profile.TerminalEssay != "" {
		e.mailer.SendAdmittanceTerminalEmail(out.User)
	} else {
		e.mailer.SendAdmittanceEmail(out.User)
	}
	return out, nil
}

// Reject marks a not-yet-admitted participant as rejected. Rejection
// and admission are mutually exclusive by predicate.
func (e *Engine) Reject(id uint) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_admitted = ? AND status_declined = ? AND status_rejected = ?",
			id, true, false, false, false).
		Update("status_rejected", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be verified, not admitted and not already declined or rejected")
	}
	return e.byID(id)
}

// UnReject lifts a rejection.
func (e *Engine) UnReject(id uint) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_declined = ? AND status_rejected = ?",
			id, true, false, true).
		Update("status_rejected", false)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be verified and rejected")
	}
	return e.byID(id)
}

// AcceptTravelClass sets the granted reimbursement class of a
// soft-admitted participant. An empty class means "None".
func (e *Engine) AcceptTravelClass(id uint, class models.ReimbursementClass) (*Result, error) {
	if class == "" {
		class = models.ReimbursementNone
	}
	res := e.db.Model(&models.User{}).
		Where("id = ? AND status_soft_admitted = ?", id, true).
		Update("profile_accepted_reimbursement_class", class)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be soft admitted")
	}
	return e.result(id)
}

// AcceptTerminal marks a soft-admitted applicant as accepted to the
// terminal track.
func (e *Engine) AcceptTerminal(id uint) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ? AND status_soft_admitted = ? AND status_rejected = ?",
			id, true, true, false).
		Update("status_terminal_accepted", true)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be soft admitted, verified and not rejected")
	}
	return e.byID(id)
}

// Rate stores an application rating. Always permitted; the rating is
// an organizer-side signal, not a pipeline state.
func (e *Engine) Rate(id uint, rating int) (*Result, error) {
	if rating < 0 || rating > 5 {
		return nil, preconditionf("rating must be between 0 and 5")
	}
	res := e.db.Model(&models.User{}).
		Where("id = ?", id).
		Update("status_rating", rating)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return e.result(id)
}

// CheckIn marks a verified participant as arrived.
func (e *Engine) CheckIn(id uint) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ?", id, true).
		Updates(map[string]interface{}{
			"status_checked_in":    true,
			"status_check_in_time": e.nowMillis(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be verified")
	}
	return e.byID(id)
}

// CheckOut reverts a check-in.
func (e *Engine) CheckOut(id uint) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ? AND verified = ?", id, true).
		Update("status_checked_in", false)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, preconditionf("user must be verified")
	}
	return e.byID(id)
}

// ToggleSpecial flips the special registration exemption.
func (e *Engine) ToggleSpecial(id uint, current bool) (*models.User, error) {
	res := e.db.Model(&models.User{}).
		Where("id = ?", id).
		Update("special_registration", !current)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return e.byID(id)
}

// AdminChangePassword sets a participant's password without knowing the
// old one.
func (e *Engine) AdminChangePassword(id uint, password string) error {
	if len(password) < 6 {
		return preconditionf("password must be 6 or more characters")
	}
	return e.setPassword(id, password)
}

// massRejectMatcher selects the candidates of the country/rating mass
// rejection: never special, soft-admitted or admitted users; Finnish
// applicants survive with a rating of 4 or better.
func (e *Engine) massRejectMatcher(db *gorm.DB) *gorm.DB {
	return db.Model(&models.User{}).
		Where("special_registration = ?", false).
		Where("status_admitted = ?", false).
		Where("status_soft_admitted = ?", false).
		Where(
			db.Where("profile_travel_from_country <> ?", "Finland").
				Or("profile_travel_from_country = ? AND status_rating < ?", "Finland", 4),
		)
}

// MassReject applies the rejection to every matching record. Records
// transition independently; there is no all-or-nothing guarantee across
// the batch.
func (e *Engine) MassReject() (int64, error) {
	res := e.massRejectMatcher(e.db).Update("status_rejected", true)
	return res.RowsAffected, res.Error
}

// RejectionCount previews how many records MassReject would touch.
func (e *Engine) RejectionCount() (int64, error) {
	var count int64
	err := e.massRejectMatcher(e.db).
		Where("status_rejected = ?", false).
		Count(&count).Error
	return count, err
}

// MassRejectRest rejects everyone who never reached soft admission,
// flagging them as late rejections.
func (e *Engine) MassRejectRest() (int64, error) {
	res := e.db.Model(&models.User{}).
		Where("status_admitted = ? AND status_soft_admitted = ?", false, false).
		Updates(map[string]interface{}{
			"status_rejected":       true,
			"status_later_rejected": true,
		})
	return res.RowsAffected, res.Error
}

// RejectionRestCount previews how many records MassRejectRest would
// touch.
func (e *Engine) RejectionRestCount() (int64, error) {
	var count int64
	err := e.db.Model(&models.User{}).
		Where("status_rejected = ? AND status_admitted = ? AND status_soft_admitted = ?",
			false, false, false).
		Count(&count).Error
	return count, err
}

// LaterRejectionCount counts waitlisted users swept up by the late
// rejection.
func (e *Engine) LaterRejectionCount() (int64, error) {
	var count int64
	err := e.db.Model(&models.User{}).
		Where("status_later_rejected = ? AND status_rejected = ? AND status_waitlist = ?",
			true, true, true).
		Count(&count).Error
	return count, err
}

// SetOnWaitlist waitlists everyone still undecided.
func (e *Engine) SetOnWaitlist() (int64, error) {
	res := e.db.Model(&models.User{}).
		Where("status_rejected = ? AND status_soft_admitted = ? AND status_admitted = ?",
			false, false, false).
		Update("status_waitlist", true)
	return res.RowsAffected, res.Error
}

// UpdateConfirmByForAll moves the confirmation deadline of every
// admitted participant: the special deadline for waitlisted users, the
// normal one for everyone else.
func (e *Engine) UpdateConfirmByForAll(special bool) (int64, error) {
	times, err := e.settings.RegistrationTimes()
	if err != nil {
		return 0, err
	}

	q := e.db.Model(&models.User{}).
		Where("verified = ? AND status_soft_admitted = ? AND status_admitted = ? AND status_rejected = ?",
			true, true, true, false)
	var res *gorm.DB
	if special {
		res = q.Where("status_waitlist = ?", true).
			Update("status_confirm_by", times.TimeConfirmSpecial)
	} else {
		res = q.Where("status_waitlist = ?", false).
			Update("status_confirm_by", times.TimeConfirm)
	}
	return res.RowsAffected, res.Error
}

// SendRejectEmailsAll notifies every rejected participant.
func (e *Engine) SendRejectEmailsAll() error {
	var users []models.User
	if err := e.db.Where("status_rejected = ?", true).Find(&users).Error; err != nil {
		return err
	}
	e.mailer.SendRejectEmails(users)
	return nil
}

// SendRejectEmailsRest notifies late-rejected waitlisted participants.
func (e *Engine) SendRejectEmailsRest() error {
	var users []models.User
	err := e.db.
		Where("status_rejected = ? AND status_later_rejected = ? AND status_waitlist = ?",
			true, true, true).
		Find(&users).Error
	if err != nil {
		return err
	}
	e.mailer.SendRejectEmails(users)
	return nil
}

// SendLaggerEmails nudges everyone with an incomplete profile.
func (e *Engine) SendLaggerEmails() error {
	var users []models.User
	if err := e.db.Where("status_completed_profile = ?", false).Find(&users).Error; err != nil {
		return err
	}
	e.mailer.SendLaggerEmails(users)
	return nil
}
