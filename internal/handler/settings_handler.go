package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"hackreg/backend/internal/models"
)

// GetSettings godoc
// @Summary      Get the event settings
// @Description  Registration windows, deadlines and display texts.
// @Tags         settings
// @Produce      json
// @Success      200  {object}  models.Settings
// @Failure      500  {object}  ErrorResponse
// @Router       /settings [get]
func GetSettings(c *gin.Context) {
	out, err := settingsSvc.Public()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// UpdateSettings godoc
// @Summary      Update the event settings
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        input body models.Settings true "Settings"
// @Success      200  {object}  models.Settings
// @Failure      400  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /admin/settings [put]
func UpdateSettings(c *gin.Context) {
	var input models.Settings
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := settingsSvc.Update(input)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, out)
}
