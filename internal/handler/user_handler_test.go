package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"hackreg/backend/internal/admission"
	"hackreg/backend/internal/config"
	"hackreg/backend/internal/mailer"
	"hackreg/backend/internal/models"
	"hackreg/backend/internal/settings"
	"hackreg/backend/pkg/wordid"
)

// newRegisterRouter wires a register route against an in-memory store
// whose normal registration window has already closed.
func newRegisterRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.AppConfig = &config.Config{JWTSecret: "test-secret"}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Team{}, &models.Settings{}))

	now := time.Now().UnixMilli()
	require.NoError(t, db.Create(&models.Settings{
		TimeOpen:         now - 2*86400000,
		TimeClose:        now - 86400000,
		TimeCloseSpecial: now + 86400000,
	}).Error)

	engine := admission.NewEngine(db, settings.NewService(db), mailer.Nop{}, wordid.New("test-seed"))
	Init(engine, nil, settings.NewService(db), nil)

	router := gin.New()
	router.POST("/auth/register", Register)
	return router, db
}

func postJSON(t *testing.T, router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterSpecialFlagAfterClose(t *testing.T) {
	router, db := newRegisterRouter(t)

	w := postJSON(t, router, "/auth/register",
		`{"email":"normal@example.com","password":"hunter22"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = postJSON(t, router, "/auth/register",
		`{"email":"secret@example.com","password":"hunter22","special":true}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var got models.User
	require.NoError(t, db.Where("email = ?", "secret@example.com").First(&got).Error)
	assert.True(t, got.SpecialRegistration)
}
