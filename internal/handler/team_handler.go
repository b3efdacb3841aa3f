package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"hackreg/backend/internal/admission"
	"hackreg/backend/internal/models"
	"hackreg/backend/internal/team"
)

// region --- DTOs ---

// LockTeamInput carries the free-form track interests submitted when
// locking a team.
type LockTeamInput struct {
	TrackInterests string `json:"track_interests"`
}

// KickInput identifies the member to remove by participant id.
type KickInput struct {
	PID string `json:"pid" binding:"required" example:"haskell-idris-janet"`
}

// TeamResponse pairs the team record with its roster.
type TeamResponse struct {
	Team    *models.Team `json:"team"`
	Members []TeamMember `json:"members"`
}

// TeamMember is the roster view of a teammate.
type TeamMember struct {
	PID       string `json:"pid"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Confirmed bool   `json:"confirmed"`
	IsLeader  bool   `json:"is_leader"`
}

// endregion

// region --- Team Handlers ---

func teamResponse(c *gin.Context, t *models.Team) {
	members, err := teams.Teammates(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	out := TeamResponse{Team: t}
	for _, m := range members {
		out.Members = append(out.Members, TeamMember{
			PID:       m.PID,
			Name:      m.Profile.Name,
			Email:     m.Email,
			Confirmed: m.Status.Confirmed,
			IsLeader:  m.ID == t.LeaderID,
		})
	}
	c.JSON(http.StatusOK, out)
}

// CreateTeam godoc
// @Summary      Create a team
// @Description  The creator becomes leader and sole member.
// @Tags         teams
// @Produce      json
// @Success      200  {object}  TeamResponse
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams [post]
func CreateTeam(c *gin.Context) {
	t, err := teams.CreateTeam(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	teamResponse(c, t)
}

// JoinTeam godoc
// @Summary      Join an existing team
// @Tags         teams
// @Produce      json
// @Param        id path int true "Team ID"
// @Success      200  {object}  TeamResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams/{id}/join [post]
func JoinTeam(c *gin.Context) {
	teamID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid team ID"})
		return
	}
	if _, err := teams.JoinTeam(c.Request.Context(), currentUserID(c), uint(teamID)); err != nil {
		fail(c, err)
		return
	}
	t, err := teams.TeamInfo(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	teamResponse(c, t)
}

// LeaveTeam godoc
// @Summary      Leave the current team
// @Description  Leadership passes to the longest-standing member; an emptied team is deleted.
// @Tags         teams
// @Produce      json
// @Success      200  {object}  models.User
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams/leave [post]
func LeaveTeam(c *gin.Context) {
	user, err := teams.LeaveTeam(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetMyTeam godoc
// @Summary      Get the current team and roster
// @Tags         teams
// @Produce      json
// @Success      200  {object}  TeamResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams/me [get]
func GetMyTeam(c *gin.Context) {
	t, err := teams.TeamInfo(currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	teamResponse(c, t)
}

// LockTeam godoc
// @Summary      Lock the team membership
// @Description  Leader only. Track interests are stored atomically with the lock.
// @Tags         teams
// @Accept       json
// @Produce      json
// @Param        input body LockTeamInput true "Track interests"
// @Success      200  {object}  TeamResponse
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams/lock [post]
func LockTeam(c *gin.Context) {
	var input LockTeamInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := teams.LockTeam(currentUserID(c), input.TrackInterests)
	if err != nil {
		fail(c, err)
		return
	}
	teamResponse(c, t)
}

// KickFromTeam godoc
// @Summary      Remove a member from the team
// @Description  Leader only. Locked teams cannot lose members this way.
// @Tags         teams
// @Accept       json
// @Produce      json
// @Param        input body KickInput true "Member participant id"
// @Success      200  {object}  TeamResponse
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams/kick [post]
func KickFromTeam(c *gin.Context) {
	var input KickInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := teams.KickFromTeam(currentUserID(c), input.PID)
	if err != nil {
		fail(c, err)
		return
	}
	teamResponse(c, t)
}

// UpdateTeamPriorities godoc
// @Summary      Update the team's ranked track priorities
// @Tags         teams
// @Accept       json
// @Produce      json
// @Param        input body team.Priorities true "Ranked tracks"
// @Success      200  {object}  TeamResponse
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams/priorities [put]
func UpdateTeamPriorities(c *gin.Context) {
	var input team.Priorities
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := teams.UpdatePriorities(currentUserID(c), input)
	if err != nil {
		fail(c, err)
		return
	}
	teamResponse(c, t)
}

// GetGavelToken godoc
// @Summary      Get the submission system token
// @Description  Lazily provisions the whole team in the external submission system on first request.
// @Tags         teams
// @Produce      json
// @Success      200  {object}  map[string]string "{"token": "..."}"
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /teams/gavel-token [get]
func GetGavelToken(c *gin.Context) {
	token, err := teams.GavelToken(c.Request.Context(), currentUserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// endregion

// region --- Matchmaking Listing ---

// ListMatchmaking godoc
// @Summary      Browse the matchmaking directory
// @Tags         matchmaking
// @Produce      json
// @Param        type query string false "individuals or teams" default(individuals)
// @Param        page query int false "Page number, zero based" default(0)
// @Param        size query int false "Page size" default(25)
// @Param        text query string false "Free-text filter"
// @Success      200  {object}  admission.MatchmakingPage
// @Failure      500  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /matchmaking [get]
func ListMatchmaking(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "0"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "25"))

	out, err := admissions.Matchmaking(admission.MatchmakingQuery{
		Type: c.DefaultQuery("type", "individuals"),
		Page: page,
		Size: size,
		Text: c.Query("text"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// endregion
