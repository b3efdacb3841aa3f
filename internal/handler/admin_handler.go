package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hackreg/backend/internal/admission"
	"hackreg/backend/internal/database"
	"hackreg/backend/internal/models"
)

// region --- DTOs ---

// RatingInput carries an application rating.
type RatingInput struct {
	Rating int `json:"rating" binding:"min=0,max=5" example:"4"`
}

// TravelClassInput carries the accepted reimbursement class.
type TravelClassInput struct {
	Class models.ReimbursementClass `json:"class" example:"Europe"`
}

// AdminPasswordInput carries a password set on behalf of a participant.
type AdminPasswordInput struct {
	Password string `json:"password" binding:"required,min=6"`
}

// AssignTrackInput carries the final track of a team.
type AssignTrackInput struct {
	Track string `json:"track" binding:"required" example:"HealthTech"`
}

// CountResponse reports how many rows a batch operation touched or
// would touch.
type CountResponse struct {
	Count int64 `json:"count"`
}

// endregion

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return uint(id), true
}

func adminEmail(c *gin.Context) string {
	var admin models.User
	if err := database.DB.First(&admin, currentUserID(c)).Error; err != nil {
		return ""
	}
	return admin.Email
}

// region --- User Review Handlers ---

// ListUsers godoc
// @Summary      List participants
// @Description  Paginated, sortable, filterable review listing.
// @Tags         admin
// @Produce      json
// @Param        page query int false "Page number, zero based" default(0)
// @Param        size query int false "Page size" default(25)
// @Param        sort query string false "Sort column"
// @Param        desc query bool false "Sort descending"
// @Param        text query string false "Free-text filter"
// @Success      200  {object}  admission.UserPage
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users [get]
func ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "25"))

	boolQuery := func(name string) bool {
		v, _ := strconv.ParseBool(c.Query(name))
		return v
	}

	out, err := admissions.ListPage(admission.PageQuery{
		Page:     page,
		Size:     size,
		SortBy:   c.Query("sort"),
		SortDesc: boolQuery("desc"),
		Text:     c.Query("text"),
		Filters: admission.Filters{
			Verified:           boolQuery("verified"),
			Submitted:          boolQuery("submitted"),
			SoftAdmitted:       boolQuery("soft_admitted"),
			Admitted:           boolQuery("admitted"),
			Confirmed:          boolQuery("confirmed"),
			AcceptedToTerminal: boolQuery("accepted_to_terminal"),
			NeedsReimbursement: boolQuery("needs_reimbursement"),
			NeedsVisa:          boolQuery("needs_visa"),
			RequestedClass:     c.Query("requested_class"),
			AcceptedClass:      c.Query("accepted_class"),
			Rejected:           boolQuery("rejected"),
			Rated:              boolQuery("rated"),
			Rated5:             boolQuery("rated5"),
			Rated4:             boolQuery("rated4"),
			Rated3:             boolQuery("rated3"),
			NotRated:           boolQuery("not_rated"),
			Teams:              boolQuery("teams"),
			Individuals:        boolQuery("individuals"),
			Terminal:           boolQuery("terminal"),
			Special:            boolQuery("special"),
		},
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetUser godoc
// @Summary      Get one participant
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  models.User
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id} [get]
func GetUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// AdminUpdateProfile godoc
// @Summary      Update a participant's profile
// @Description  Organizer-side variant, free of the registration window.
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path int true "User ID"
// @Param        input body models.Profile true "Application answers"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/profile [put]
func AdminUpdateProfile(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var input models.Profile
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := admissions.AdminUpdateProfile(id, input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SoftAdmit godoc
// @Summary      Toggle soft admission
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  admission.Result
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/soft-admit [post]
func SoftAdmit(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	out, err := admissions.SoftAdmit(id, adminEmail(c), user.Status.SoftAdmitted)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Admit godoc
// @Summary      Finalize admission
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  admission.Result
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/admit [post]
func Admit(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	out, err := admissions.Admit(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Reject godoc
// @Summary      Reject a participant
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/reject [post]
func Reject(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := admissions.Reject(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UnReject godoc
// @Summary      Lift a rejection
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/unreject [post]
func UnReject(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := admissions.UnReject(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// AcceptTravelClass godoc
// @Summary      Grant a travel reimbursement class
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path int true "User ID"
// @Param        input body TravelClassInput true "Accepted class"
// @Success      200  {object}  admission.Result
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/travel-class [put]
func AcceptTravelClass(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var input TravelClassInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := admissions.AcceptTravelClass(id, input.Class)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AcceptTerminal godoc
// @Summary      Accept a terminal-track application
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/terminal [post]
func AcceptTerminal(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := admissions.AcceptTerminal(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// RateUser godoc
// @Summary      Rate an application
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path int true "User ID"
// @Param        input body RatingInput true "Rating 0-5"
// @Success      200  {object}  admission.Result
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/rate [put]
func RateUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var input RatingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := admissions.Rate(id, input.Rating)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// CheckInUser godoc
// @Summary      Check a participant in at the venue
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/check-in [post]
func CheckInUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := admissions.CheckIn(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// CheckOutUser godoc
// @Summary      Revert a check-in
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/check-out [post]
func CheckOutUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	user, err := admissions.CheckOut(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// ToggleSpecial godoc
// @Summary      Toggle special registration
// @Tags         admin
// @Produce      json
// @Param        id path int true "User ID"
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/special [post]
func ToggleSpecial(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var user models.User
	if err := database.DB.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	out, err := admissions.ToggleSpecial(id, user.SpecialRegistration)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// AdminChangePassword godoc
// @Summary      Set a participant's password
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path int true "User ID"
// @Param        input body AdminPasswordInput true "New password"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/users/{id}/password [put]
func AdminChangePassword(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var input AdminPasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := admissions.AdminChangePassword(id, input.Password); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}

// AssignTrack godoc
// @Summary      Assign the final track of a team
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        id path int true "Team ID"
// @Param        input body AssignTrackInput true "Track"
// @Success      200  {object}  models.Team
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/teams/{id}/track [put]
func AssignTrack(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var input AssignTrackInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := teams.AssignTrack(id, input.Track)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// endregion

// region --- Batch Handlers ---

// MassReject godoc
// @Summary      Reject applicants matching the first-round criteria
// @Description  Skips special, soft-admitted and admitted participants, and Finnish applicants rated 4 or higher.
// @Tags         admin
// @Produce      json
// @Success      200  {object}  CountResponse
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/batch/reject [post]
func MassReject(c *gin.Context) {
	count, err := admissions.MassReject()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// MassRejectCount godoc
// @Summary      Preview the first-round rejection count
// @Tags         admin
// @Produce      json
// @Success      200  {object}  CountResponse
// @Security     BearerAuth
// @Router       /admin/batch/reject/count [get]
func MassRejectCount(c *gin.Context) {
	count, err := admissions.RejectionCount()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// MassRejectRest godoc
// @Summary      Reject every remaining undecided applicant
// @Tags         admin
// @Produce      json
// @Success      200  {object}  CountResponse
// @Security     BearerAuth
// @Router       /admin/batch/reject-rest [post]
func MassRejectRest(c *gin.Context) {
	count, err := admissions.MassRejectRest()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// MassRejectRestCount godoc
// @Summary      Preview the final rejection count
// @Tags         admin
// @Produce      json
// @Success      200  {object}  CountResponse
// @Security     BearerAuth
// @Router       /admin/batch/reject-rest/count [get]
func MassRejectRestCount(c *gin.Context) {
	count, err := admissions.RejectionRestCount()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// LaterRejectionCount godoc
// @Summary      Count waitlisted participants rejected in the final round
// @Tags         admin
// @Produce      json
// @Success      200  {object}  CountResponse
// @Security     BearerAuth
// @Router       /admin/batch/later-rejected/count [get]
func LaterRejectionCount(c *gin.Context) {
	count, err := admissions.LaterRejectionCount()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// SetOnWaitlist godoc
// @Summary      Move every undecided applicant to the waitlist
// @Tags         admin
// @Produce      json
// @Success      200  {object}  CountResponse
// @Security     BearerAuth
// @Router       /admin/batch/waitlist [post]
func SetOnWaitlist(c *gin.Context) {
	count, err := admissions.SetOnWaitlist()
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// UpdateConfirmBy godoc
// @Summary      Reset confirmation deadlines in bulk
// @Description  With special=true, waitlisted admits get the special deadline.
// @Tags         admin
// @Produce      json
// @Param        special query bool false "Use the special deadline for waitlisted admits"
// @Success      200  {object}  CountResponse
// @Security     BearerAuth
// @Router       /admin/batch/confirm-by [post]
func UpdateConfirmBy(c *gin.Context) {
	special, _ := strconv.ParseBool(c.Query("special"))
	count, err := admissions.UpdateConfirmByForAll(special)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CountResponse{Count: count})
}

// SendRejectEmails godoc
// @Summary      Send rejection notifications
// @Description  With rest=true only the final-round rejections are notified.
// @Tags         admin
// @Produce      json
// @Param        rest query bool false "Only final-round rejections"
// @Success      200  {object}  map[string]string
// @Security     BearerAuth
// @Router       /admin/batch/reject-emails [post]
func SendRejectEmails(c *gin.Context) {
	rest, _ := strconv.ParseBool(c.Query("rest"))
	var err error
	if rest {
		err = admissions.SendRejectEmailsRest()
	} else {
		err = admissions.SendRejectEmailsAll()
	}
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rejection emails queued"})
}

// SendLaggerEmails godoc
// @Summary      Remind registrants with incomplete profiles
// @Tags         admin
// @Produce      json
// @Success      200  {object}  map[string]string
// @Security     BearerAuth
// @Router       /admin/batch/lagger-emails [post]
func SendLaggerEmails(c *gin.Context) {
	if err := admissions.SendLaggerEmails(); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder emails queued"})
}

// endregion

// region --- Stats Handlers ---

// GetUserStats godoc
// @Summary      Get the cached participant statistics
// @Tags         admin
// @Produce      json
// @Success      200  {object}  stats.UserStats
// @Security     BearerAuth
// @Router       /admin/stats/users [get]
func GetUserStats(c *gin.Context) {
	c.JSON(http.StatusOK, aggregator.UserStats())
}

// GetTeamStats godoc
// @Summary      Get the cached team statistics
// @Tags         admin
// @Produce      json
// @Success      200  {object}  stats.TeamStats
// @Security     BearerAuth
// @Router       /admin/stats/teams [get]
func GetTeamStats(c *gin.Context) {
	c.JSON(http.StatusOK, aggregator.TeamStats())
}

// endregion
