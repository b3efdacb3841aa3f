package stats

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hackreg/backend/internal/models"
	"hackreg/backend/internal/settings"
)

func newTestAggregator(t *testing.T) (*Aggregator, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Team{}, &models.Settings{}))
	require.NoError(t, db.Create(&models.Settings{
		Reimbursement: models.ReimbursementAmounts{
			Finland:      20,
			Baltics:      40,
			Nordics:      60,
			Europe:       80,
			RestOfWorld:  150,
			GoldenTicket: 200,
		},
	}).Error)
	return NewAggregator(db, settings.NewService(db)), db
}

func TestRefreshUserStats(t *testing.T) {
	agg, db := newTestAggregator(t)

	require.NoError(t, db.Create(&models.User{
		PID: "a", Email: "a@aalto.fi", PasswordHash: "x", Verified: true,
		Profile: models.Profile{
			Gender:                     "F",
			MostInterestingTrack:       "AI",
			TeamSelection:              "alone",
			NeedsReimbursement:         true,
			AppliedReimbursementClass:  models.ReimbursementEurope,
			AcceptedReimbursementClass: models.ReimbursementEurope,
		},
		Status: models.Status{
			CompletedProfile: true,
			SoftAdmitted:     true,
			Admitted:         true,
			Confirmed:        true,
			Rating:           5,
		},
		Confirmation: models.Confirmation{
			ShirtSize:           "M",
			DietaryRestrictions: "Vegan, Gluten free",
			HostNeededFri:       true,
			WantsHardware:       true,
		},
	}).Error)
	require.NoError(t, db.Create(&models.User{
		PID: "b", Email: "b@aalto.fi", PasswordHash: "x", Verified: true,
		Profile: models.Profile{
			Gender:                     "M",
			MostInterestingTrack:       "AI",
			TeamSelection:              "onlyTeam",
			AppliedReimbursementClass:  models.ReimbursementFinland,
			AcceptedReimbursementClass: models.ReimbursementFinland,
		},
		Status: models.Status{CompletedProfile: true, Rating: 3},
	}).Error)
	require.NoError(t, db.Create(&models.User{
		PID: "c", Email: "c@helsinki.fi", PasswordHash: "x",
		Profile: models.Profile{Gender: "M"},
	}).Error)

	require.NoError(t, agg.RefreshUserStats())
	s := agg.UserStats()

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 2, s.Verified)
	assert.Equal(t, 2, s.Submitted)
	assert.Equal(t, 2, s.Rated)
	assert.Equal(t, 1, s.Rated5Stars)
	assert.Equal(t, 1, s.Rated3Stars)
	assert.Equal(t, 1, s.Admitted)
	assert.Equal(t, 1, s.Confirmed)
	assert.Equal(t, GenderCounts{M: 2, F: 1}, s.Gender)
	assert.Equal(t, GenderCounts{F: 1}, s.ConfirmedGender)
	assert.Equal(t, 2, s.Tracks["AI"])
	assert.Equal(t, 1, s.ConfirmedTracks["AI"])
	assert.Equal(t, 1, s.AppliedTracks["AI"], "confirmed users leave the applied bucket")
	assert.Equal(t, 1, s.TeamSelection.Alone)
	assert.Equal(t, 1, s.TeamSelection.OnlyTeam)
	assert.Equal(t, 1, s.ReimbursementTotal)
	assert.Equal(t, 1, s.RequestedClasses.Europe)
	assert.Equal(t, 1, s.RequestedClasses.Finland)
	assert.Equal(t, 1, s.AcceptedClasses.Europe)
	assert.Equal(t, 1, s.ConfirmedClasses.Europe)
	assert.Equal(t, 0, s.ConfirmedClasses.Finland)
	assert.Equal(t, 100, s.AcceptedReimbursementAmount, "80 EUR Europe + 20 EUR Finland")
	assert.Equal(t, 80, s.ConfirmedReimbursementAmount)
	assert.Equal(t, 1, s.ShirtSizes["M"])
	assert.Equal(t, 1, s.HostNeededFri)
	assert.Equal(t, 1, s.HostNeededUnique)
	assert.Equal(t, GenderCounts{F: 1}, s.HostNeededGender)
	assert.Equal(t, 1, s.WantsHardware)
	assert.ElementsMatch(t, []DietaryRestriction{
		{Name: "Vegan", Count: 1},
		{Name: "Gluten free", Count: 1},
	}, s.DietaryRestrictions)
	assert.False(t, s.LastUpdated.IsZero())

	wantSchools := map[string]int{"aalto.fi": 2, "helsinki.fi": 0}
	require.Len(t, s.Schools, 2)
	for _, school := range s.Schools {
		assert.Equal(t, wantSchools[school.Email], school.Submitted, school.Email)
	}
}

func TestRefreshUserStatsSkipsDeclinedReimbursements(t *testing.T) {
	agg, db := newTestAggregator(t)

	require.NoError(t, db.Create(&models.User{
		PID: "d", Email: "d@example.com", PasswordHash: "x", Verified: true,
		Profile: models.Profile{
			AcceptedReimbursementClass: models.ReimbursementNordics,
		},
		Status: models.Status{Admitted: true, Declined: true},
	}).Error)

	require.NoError(t, agg.RefreshUserStats())
	s := agg.UserStats()
	assert.Equal(t, 0, s.AcceptedClasses.Nordics)
	assert.Equal(t, 0, s.AcceptedReimbursementAmount)
	assert.Equal(t, 1, s.Declined)
}

func TestRefreshTeamStats(t *testing.T) {
	agg, db := newTestAggregator(t)

	team := models.Team{LeaderID: 1, TeamLocked: true, AssignedTrack: "AI"}
	require.NoError(t, db.Create(&team).Error)
	for _, pid := range []string{"m1", "m2", "m3"} {
		require.NoError(t, db.Create(&models.User{
			PID: pid, Email: pid + "@example.com", PasswordHash: "x",
			TeamID: &team.ID,
		}).Error)
	}
	require.NoError(t, db.Create(&models.Team{LeaderID: 2}).Error)

	require.NoError(t, agg.RefreshTeamStats())
	s := agg.TeamStats()

	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Locked)
	assert.Equal(t, 3, s.TrackAssignment["AI"])
	assert.False(t, s.LastUpdated.IsZero())
}

func TestStartAndStop(t *testing.T) {
	agg, _ := newTestAggregator(t)
	agg.Start()
	assert.False(t, agg.UserStats().LastUpdated.IsZero(), "initial snapshot is computed synchronously")
	agg.Stop()
}
