package handler

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"hackreg/backend/internal/database"
	"hackreg/backend/internal/models"
	"hackreg/backend/pkg/jwt"
)

// region --- DTOs ---

// RegisterInput defines the structure for participant registration.
type RegisterInput struct {
	Email    string `json:"email" binding:"required,email" example:"test@example.com"`
	Password string `json:"password" binding:"required,min=6" example:"password123"`
	Nickname string `json:"nickname" example:"testuser"`
	// Special is set by the unlisted application page and extends the
	// window until the special close.
	Special bool `json:"special"`
}

// LoginInput defines the structure for user login.
type LoginInput struct {
	Email    string `json:"email" binding:"required,email" example:"test@example.com"`
	Password string `json:"password" binding:"required" example:"password123"`
}

// EmailInput carries a single email address.
type EmailInput struct {
	Email string `json:"email" binding:"required,email" example:"test@example.com"`
}

// ResetPasswordInput defines the structure for a token-based password reset.
type ResetPasswordInput struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// ChangePasswordInput defines the structure for a password change.
type ChangePasswordInput struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// ReceiptInput carries the uploaded receipt file name.
type ReceiptInput struct {
	FileName string `json:"file_name" binding:"required"`
}

// MeResponse is the authenticated participant's own record plus the
// derived team lock flag.
type MeResponse struct {
	models.User
	TeamLocked   bool `json:"team_locked"`
	TeamInSearch bool `json:"team_in_search"`
}

// endregion

// region --- Auth Handlers ---

// Register godoc
// @Summary      Register a new participant
// @Description  Creates an account inside the registration window and sends a verification email.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body RegisterInput true "Registration Info"
// @Success      201  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /auth/register [post]
func Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := admissions.Register(input.Email, input.Password, input.Nickname, input.Special)
	if err != nil {
		fail(c, err)
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

// Login godoc
// @Summary      Log in a participant
// @Description  Authenticates with email and password and returns a new token.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body LoginInput true "Login Info"
// @Success      200  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/login [post]
func Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.Where("email = ?", strings.ToLower(input.Email)).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := jwt.GenerateToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// VerifyEmail godoc
// @Summary      Verify an email address
// @Tags         auth
// @Produce      json
// @Param        token path string true "Verification token"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Router       /auth/verify/{token} [post]
func VerifyEmail(c *gin.Context) {
	user, err := admissions.VerifyEmail(c.Param("token"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ResendVerification godoc
// @Summary      Resend the verification email
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /auth/verify/resend [post]
func ResendVerification(c *gin.Context) {
	if err := admissions.ResendVerification(currentUserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Verification email sent"})
}

// ForgotPassword godoc
// @Summary      Send a password reset email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body EmailInput true "Account email"
// @Success      200  {object}  map[string]string
// @Router       /auth/reset [post]
func ForgotPassword(c *gin.Context) {
	var input EmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Do not reveal whether the account exists.
	if err := admissions.SendPasswordReset(input.Email); err != nil {
		log.Printf("handler: password reset for %s not sent: %v", input.Email, err)
	}
	c.JSON(http.StatusOK, gin.H{"message": "If the account exists, a reset email was sent"})
}

// ResetPassword godoc
// @Summary      Reset a password with a reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        input body ResetPasswordInput true "Token and new password"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  ErrorResponse
// @Router       /auth/reset/password [post]
func ResetPassword(c *gin.Context) {
	var input ResetPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := admissions.ResetPassword(input.Token, input.Password); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// ChangePassword godoc
// @Summary      Change the account password
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        input body ChangePasswordInput true "Old and new password"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/password [put]
func ChangePassword(c *gin.Context) {
	var input ChangePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := admissions.ChangePassword(currentUserID(c), input.OldPassword, input.NewPassword); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// endregion

// region --- Self-Service Handlers ---

// GetMe godoc
// @Summary      Get the authenticated participant
// @Tags         users
// @Produce      json
// @Success      200  {object}  MeResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me [get]
func GetMe(c *gin.Context) {
	var user models.User
	if err := database.DB.First(&user, currentUserID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	locked := false
	if user.TeamID != nil {
		var t models.Team
		if err := database.DB.First(&t, *user.TeamID).Error; err == nil {
			locked = t.TeamLocked
		}
	}
	inSearch, err := admissions.TeamInSearch(&user)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, MeResponse{User: user, TeamLocked: locked, TeamInSearch: inSearch})
}

// UpdateProfile godoc
// @Summary      Submit or update the application profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        input body models.Profile true "Application answers"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/profile [put]
func UpdateProfile(c *gin.Context) {
	var input models.Profile
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := database.DB.First(&user, currentUserID(c)).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	updated, err := admissions.SubmitProfile(user.ID, input, user.SpecialRegistration)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// UpdateEmail godoc
// @Summary      Change the account email address
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        input body EmailInput true "New address"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/email [put]
func UpdateEmail(c *gin.Context) {
	var input EmailInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := admissions.UpdateEmail(currentUserID(c), input.Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SubmitConfirmation godoc
// @Summary      Confirm attendance
// @Description  Stores the attendance details. Team leaders propagate their track priorities to the team.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        input body models.Confirmation true "Attendance details"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/confirmation [put]
func SubmitConfirmation(c *gin.Context) {
	var input models.Confirmation
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := admissions.SubmitConfirmation(currentUserID(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Decline godoc
// @Summary      Decline the admission
// @Description  Terminal for team actions: the participant is removed from their team.
// @Tags         users
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/decline [post]
func Decline(c *gin.Context) {
	user, err := admissions.Decline(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SubmitReimbursement godoc
// @Summary      Apply for travel reimbursement
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        input body models.Reimbursement true "Bank details"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/reimbursement [put]
func SubmitReimbursement(c *gin.Context) {
	var input models.Reimbursement
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := admissions.SubmitReimbursement(currentUserID(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateReceipt godoc
// @Summary      Record an uploaded receipt file
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        input body ReceiptInput true "File name"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/reimbursement/receipt [put]
func UpdateReceipt(c *gin.Context) {
	var input ReceiptInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := admissions.UpdateReceiptFile(currentUserID(c), input.FileName)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateMatchmaking godoc
// @Summary      Update the matchmaking card
// @Tags         matchmaking
// @Accept       json
// @Produce      json
// @Param        input body models.Matchmaking true "Matchmaking card"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/matchmaking [put]
func UpdateMatchmaking(c *gin.Context) {
	var input models.Matchmaking
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := admissions.UpdateMatchmakingProfile(currentUserID(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ExitSearch godoc
// @Summary      Withdraw from the matchmaking directory
// @Tags         matchmaking
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /users/me/matchmaking/exit [post]
func ExitSearch(c *gin.Context) {
	user, err := admissions.ExitSearch(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// endregion
