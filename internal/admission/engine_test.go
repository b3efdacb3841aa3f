package admission

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hackreg/backend/internal/config"
	"hackreg/backend/internal/mailer"
	"hackreg/backend/internal/models"
	"hackreg/backend/internal/settings"
	"hackreg/backend/pkg/jwt"
	"hackreg/backend/pkg/wordid"
)

// recordingMailer counts notifications instead of sending them.
type recordingMailer struct {
	mailer.Nop
	verifications int
	applications  int
	admittances   int
	terminals     int
	confirmations int
	declines      int
	lastToken     string
}

func (m *recordingMailer) SendVerificationEmail(_ *models.User, token string) {
	m.verifications++
	m.lastToken = token
}
func (m *recordingMailer) SendApplicationEmail(*models.User)        { m.applications++ }
func (m *recordingMailer) SendAdmittanceEmail(*models.User)         { m.admittances++ }
func (m *recordingMailer) SendAdmittanceTerminalEmail(*models.User) { m.terminals++ }
func (m *recordingMailer) SendConfirmationEmail(*models.User)       { m.confirmations++ }
func (m *recordingMailer) SendDeclinedEmail(*models.User)           { m.declines++ }

func newTestEngine(t *testing.T) (*Engine, *gorm.DB, *recordingMailer) {
	t.Helper()
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Team{}, &models.Settings{}))

	now := time.Now().UnixMilli()
	require.NoError(t, db.Create(&models.Settings{
		TimeOpen:           now - 86400000,
		TimeClose:          now + 86400000,
		TimeCloseSpecial:   now + 2*86400000,
		TimeConfirm:        now + 7*86400000,
		TimeConfirmSpecial: now + 10*86400000,
		TimeTR:             now + 14*86400000,
	}).Error)

	m := &recordingMailer{}
	engine := NewEngine(db, settings.NewService(db), m, wordid.New("test-seed"))
	return engine, db, m
}

func seedUser(t *testing.T, db *gorm.DB, email string, mutate func(*models.User)) *models.User {
	t.Helper()
	user := models.User{
		PID:          email,
		Email:        email,
		PasswordHash: "x",
		Verified:     true,
	}
	if mutate != nil {
		mutate(&user)
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestRegister(t *testing.T) {
	engine, db, m := newTestEngine(t)

	user, err := engine.Register("Someone@Example.COM", "hunter22", "someone", false)
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", user.Email, "emails are stored lowercased")
	assert.NotEmpty(t, user.PID)
	assert.False(t, user.Verified)
	assert.Equal(t, 1, m.verifications)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.Register("dup@example.com", "hunter22", "", false)
	require.NoError(t, err)
	_, err = engine.Register("DUP@example.com", "hunter22", "", false)
	assert.True(t, IsPrecondition(err))
}

func TestRegisterShortPassword(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.Register("short@example.com", "abc", "", false)
	assert.True(t, IsPrecondition(err))
}

func TestRegisterOutsideWindow(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	engine.now = func() time.Time { return time.Now().Add(36 * time.Hour) }

	_, err := engine.Register("late@example.com", "hunter22", "", false)
	assert.True(t, IsPrecondition(err))

	// Special registration stays open until the special close.
	_, err = engine.Register("special@example.com", "hunter22", "", true)
	assert.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	engine, db, m := newTestEngine(t)

	user, err := engine.Register("verify@example.com", "hunter22", "", false)
	require.NoError(t, err)
	require.NotEmpty(t, m.lastToken)

	got, err := engine.VerifyEmail(m.lastToken)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	var stored models.User
	require.NoError(t, db.First(&stored, user.ID).Error)
	assert.True(t, stored.Verified)
}

func TestVerifyEmailBadToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	_, err := engine.VerifyEmail("not-a-token")
	assert.True(t, IsPrecondition(err))
}

func TestSubmitProfile(t *testing.T) {
	engine, _, m := newTestEngine(t)
	user := seedUser(t, engine.db, "applicant@example.com", nil)

	profile := models.Profile{
		Name:                 "Test Applicant",
		HomeCountry:          "Finland",
		TravelFromCountry:    "Finland",
		MostInterestingTrack: "AI",
	}
	got, err := engine.SubmitProfile(user.ID, profile, false)
	require.NoError(t, err)
	assert.True(t, got.Status.CompletedProfile)
	assert.True(t, got.Profile.SubmittedApplication)
	assert.Equal(t, models.ReimbursementNone, got.Profile.AcceptedReimbursementClass,
		"accepted class defaults to None")
	assert.Equal(t, 1, m.applications)

	// Resubmitting does not repeat the application-received email.
	_, err = engine.SubmitProfile(user.ID, profile, false)
	require.NoError(t, err)
	assert.Equal(t, 1, m.applications)
}

func TestSubmitProfileUnverified(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "unverified@example.com", func(u *models.User) {
		u.Verified = false
	})

	_, err := engine.SubmitProfile(user.ID, models.Profile{Name: "X"}, false)
	require.True(t, IsPrecondition(err))

	// Failed transition mutates nothing.
	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.False(t, got.Status.CompletedProfile)
	assert.Empty(t, got.Profile.Name)
}

func TestAdmissionPipeline(t *testing.T) {
	engine, db, m := newTestEngine(t)
	user := seedUser(t, db, "pipeline@example.com", nil)

	_, err := engine.SubmitProfile(user.ID, models.Profile{Name: "Pipeline"}, false)
	require.NoError(t, err)

	// Admit requires soft admission first.
	_, err = engine.Admit(user.ID)
	require.True(t, IsPrecondition(err))

	out, err := engine.SoftAdmit(user.ID, "admin@example.com", false)
	require.NoError(t, err)
	assert.True(t, out.User.Status.SoftAdmitted)
	assert.Equal(t, "admin@example.com", out.User.Status.AdmittedBy)

	out, err = engine.Admit(user.ID)
	require.NoError(t, err)
	assert.True(t, out.User.Status.Admitted)
	assert.NotZero(t, out.User.Status.ConfirmBy)
	assert.Equal(t, 1, m.admittances)
	assert.Zero(t, m.terminals)

	got, err := engine.SubmitConfirmation(user.ID, models.Confirmation{
		PhoneNumber: "+358401234567",
		ShirtSize:   "M",
	})
	require.NoError(t, err)
	assert.True(t, got.Status.Confirmed)
	assert.Equal(t, 1, m.confirmations)
}

func TestSoftAdmitToggle(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "toggle@example.com", nil)

	out, err := engine.SoftAdmit(user.ID, "a@example.com", false)
	require.NoError(t, err)
	require.True(t, out.User.Status.SoftAdmitted)

	out, err = engine.SoftAdmit(user.ID, "a@example.com", true)
	require.NoError(t, err)
	assert.False(t, out.User.Status.SoftAdmitted)
}

func TestAdmitUsesSpecialDeadlineAfterNormalOne(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "latecomer@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
	})

	times, err := engine.settings.RegistrationTimes()
	require.NoError(t, err)

	engine.now = func() time.Time { return time.UnixMilli(times.TimeConfirm + 1000) }
	out, err := engine.Admit(user.ID)
	require.NoError(t, err)
	assert.Equal(t, times.TimeConfirmSpecial, out.User.Status.ConfirmBy)
}

func TestAdmitTerminalApplicant(t *testing.T) {
	engine, db, m := newTestEngine(t)
	user := seedUser(t, db, "terminal@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Profile.TerminalEssay = "I want a terminal spot because..."
	})

	_, err := engine.Admit(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, m.terminals)
	assert.Zero(t, m.admittances)
}

func TestSubmitConfirmationDeadline(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	deadline := time.Now().Add(time.Hour).UnixMilli()
	user := seedUser(t, db, "deadline@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Status.Admitted = true
		u.Status.ConfirmBy = deadline
	})

	engine.now = func() time.Time { return time.UnixMilli(deadline + 1) }
	_, err := engine.SubmitConfirmation(user.ID, models.Confirmation{})
	assert.True(t, IsPrecondition(err))
}

func TestSubmitConfirmationIdempotentPastDeadline(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	deadline := time.Now().Add(time.Hour).UnixMilli()
	user := seedUser(t, db, "resubmit@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Status.Admitted = true
		u.Status.Confirmed = true
		u.Status.ConfirmBy = deadline
	})

	// An already confirmed participant may update their details after
	// the deadline has passed.
	engine.now = func() time.Time { return time.UnixMilli(deadline + 1) }
	got, err := engine.SubmitConfirmation(user.ID, models.Confirmation{ShirtSize: "L"})
	require.NoError(t, err)
	assert.Equal(t, "L", got.Confirmation.ShirtSize)
	assert.True(t, got.Status.Confirmed)
}

func TestLeaderConfirmationPropagatesPriorities(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	team := models.Team{LeaderID: 1}
	require.NoError(t, db.Create(&team).Error)
	leader := seedUser(t, db, "leader@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Status.Admitted = true
		u.Status.ConfirmBy = time.Now().Add(time.Hour).UnixMilli()
		u.TeamID = &team.ID
	})
	require.NoError(t, db.Model(&models.Team{}).Where("id = ?", team.ID).
		Update("leader_id", leader.ID).Error)

	_, err := engine.SubmitConfirmation(leader.ID, models.Confirmation{
		FirstPriorityTrack:  "AI",
		SecondPriorityTrack: "Health",
		ThirdPriorityTrack:  "Space",
	})
	require.NoError(t, err)

	var got models.Team
	require.NoError(t, db.First(&got, team.ID).Error)
	assert.Equal(t, "AI", got.FirstPriorityTrack)
	assert.Equal(t, "Health", got.SecondPriorityTrack)
	assert.Equal(t, "Space", got.ThirdPriorityTrack)
}

type fakeLeaver struct {
	db    *gorm.DB
	calls []uint
}

func (f *fakeLeaver) LeaveTeam(_ context.Context, userID uint) (*models.User, error) {
	f.calls = append(f.calls, userID)
	err := f.db.Model(&models.User{}).Where("id = ?", userID).
		Update("team_id", nil).Error
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := f.db.First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func TestDeclineCascadesTeamLeave(t *testing.T) {
	engine, db, m := newTestEngine(t)
	leaver := &fakeLeaver{db: db}
	engine.SetTeamLeaver(leaver)

	team := models.Team{LeaderID: 1}
	require.NoError(t, db.Create(&team).Error)
	user := seedUser(t, db, "decliner@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Status.Admitted = true
		u.Status.Confirmed = true
		u.TeamID = &team.ID
	})

	got, err := engine.Decline(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Declined)
	assert.False(t, got.Status.Confirmed, "declining revokes confirmation")
	assert.Nil(t, got.TeamID)
	assert.Equal(t, []uint{user.ID}, leaver.calls)
	assert.Equal(t, 1, m.declines)
}

func TestDeclineRequiresAdmission(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "notadmitted@example.com", nil)

	_, err := engine.Decline(context.Background(), user.ID)
	assert.True(t, IsPrecondition(err))
}

func TestRejectAndUnReject(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "reject@example.com", nil)
	admitted := seedUser(t, db, "safe@example.com", func(u *models.User) {
		u.Status.Admitted = true
	})

	got, err := engine.Reject(user.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.Rejected)

	// Admitted participants cannot be rejected.
	_, err = engine.Reject(admitted.ID)
	assert.True(t, IsPrecondition(err))

	got, err = engine.UnReject(user.ID)
	require.NoError(t, err)
	assert.False(t, got.Status.Rejected)
}

func TestMassReject(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	// Matches: foreign applicant, Finnish applicant rated below 4.
	seedUser(t, db, "abroad@example.com", func(u *models.User) {
		u.Profile.TravelFromCountry = "Germany"
	})
	seedUser(t, db, "lowrated@example.com", func(u *models.User) {
		u.Profile.TravelFromCountry = "Finland"
		u.Status.Rating = 3
	})
	// Protected: Finnish rated 4, soft-admitted, admitted, special.
	seedUser(t, db, "highrated@example.com", func(u *models.User) {
		u.Profile.TravelFromCountry = "Finland"
		u.Status.Rating = 4
	})
	seedUser(t, db, "softadmitted@example.com", func(u *models.User) {
		u.Profile.TravelFromCountry = "Germany"
		u.Status.SoftAdmitted = true
	})
	seedUser(t, db, "admitted@example.com", func(u *models.User) {
		u.Profile.TravelFromCountry = "Germany"
		u.Status.Admitted = true
	})
	seedUser(t, db, "special@example.com", func(u *models.User) {
		u.Profile.TravelFromCountry = "Germany"
		u.SpecialRegistration = true
	})

	count, err := engine.RejectionCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	affected, err := engine.MassReject()
	require.NoError(t, err)
	assert.EqualValues(t, 2, affected)

	var rejected []models.User
	require.NoError(t, db.Where("status_rejected = ?", true).Find(&rejected).Error)
	emails := []string{rejected[0].Email, rejected[1].Email}
	assert.ElementsMatch(t, []string{"abroad@example.com", "lowrated@example.com"}, emails)
}

func TestMassRejectRestAndWaitlist(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	pending := seedUser(t, db, "pending@example.com", nil)
	seedUser(t, db, "keeper@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
	})

	waitlisted, err := engine.SetOnWaitlist()
	require.NoError(t, err)
	assert.EqualValues(t, 1, waitlisted)

	affected, err := engine.MassRejectRest()
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	var got models.User
	require.NoError(t, db.First(&got, pending.ID).Error)
	assert.True(t, got.Status.Rejected)
	assert.True(t, got.Status.LaterRejected)
	assert.True(t, got.Status.Waitlist)

	count, err := engine.LaterRejectionCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestUpdateConfirmByForAll(t *testing.T) {
	engine, db, _ := newTestEngine(t)

	direct := seedUser(t, db, "direct@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Status.Admitted = true
	})
	waitlisted := seedUser(t, db, "fromwaitlist@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
		u.Status.Admitted = true
		u.Status.Waitlist = true
	})

	times, err := engine.settings.RegistrationTimes()
	require.NoError(t, err)

	affected, err := engine.UpdateConfirmByForAll(false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	affected, err = engine.UpdateConfirmByForAll(true)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	var gotDirect models.User
	require.NoError(t, db.First(&gotDirect, direct.ID).Error)
	assert.Equal(t, times.TimeConfirm, gotDirect.Status.ConfirmBy)

	var gotWaitlisted models.User
	require.NoError(t, db.First(&gotWaitlisted, waitlisted.ID).Error)
	assert.Equal(t, times.TimeConfirmSpecial, gotWaitlisted.Status.ConfirmBy)
}

func TestSubmitReimbursementDeadline(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "traveler@example.com", func(u *models.User) {
		u.Status.Admitted = true
	})

	got, err := engine.SubmitReimbursement(user.ID, models.Reimbursement{
		Iban:         "FI2112345600000785",
		Swift:        "NDEAFIHH",
		ReceiptTotal: "123.45",
	})
	require.NoError(t, err)
	assert.True(t, got.Status.ReimbursementApplied)

	engine.now = func() time.Time { return time.Now().Add(15 * 24 * time.Hour) }
	_, err = engine.SubmitReimbursement(user.ID, models.Reimbursement{})
	assert.True(t, IsPrecondition(err))
}

func TestRate(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "rated@example.com", nil)

	out, err := engine.Rate(user.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, out.User.Status.Rating)

	_, err = engine.Rate(user.ID, 6)
	assert.True(t, IsPrecondition(err))
}

func TestCheckInAndOut(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "attendee@example.com", nil)

	got, err := engine.CheckIn(user.ID)
	require.NoError(t, err)
	assert.True(t, got.Status.CheckedIn)
	assert.NotZero(t, got.Status.CheckInTime)

	got, err = engine.CheckOut(user.ID)
	require.NoError(t, err)
	assert.False(t, got.Status.CheckedIn)
}

func TestChangePassword(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("original"), bcrypt.MinCost)
	require.NoError(t, err)
	user := seedUser(t, db, "pwd@example.com", func(u *models.User) {
		u.PasswordHash = string(hash)
	})

	err = engine.ChangePassword(user.ID, "wrong", "newpassword")
	assert.True(t, IsPrecondition(err))

	require.NoError(t, engine.ChangePassword(user.ID, "original", "newpassword"))

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("newpassword")))
}

func TestResetPassword(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "reset@example.com", nil)

	token, err := jwt.GenerateResetToken(user.ID)
	require.NoError(t, err)

	require.NoError(t, engine.ResetPassword(token, "freshpassword"))

	var got models.User
	require.NoError(t, db.First(&got, user.ID).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("freshpassword")))

	// Auth tokens are not accepted as reset tokens.
	authToken, err := jwt.GenerateToken(user.ID)
	require.NoError(t, err)
	err = engine.ResetPassword(authToken, "freshpassword")
	assert.True(t, IsPrecondition(err))
}

func TestAcceptTravelClass(t *testing.T) {
	engine, db, _ := newTestEngine(t)
	user := seedUser(t, db, "class@example.com", func(u *models.User) {
		u.Status.SoftAdmitted = true
	})

	out, err := engine.AcceptTravelClass(user.ID, models.ReimbursementEurope)
	require.NoError(t, err)
	assert.Equal(t, models.ReimbursementEurope, out.User.Profile.AcceptedReimbursementClass)

	out, err = engine.AcceptTravelClass(user.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.ReimbursementNone, out.User.Profile.AcceptedReimbursementClass)
}
