package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbuddy/internal/models"
	"taskbuddy/internal/services"
)

type UserHandler struct {
	service services.UserService
}

func NewUserHandler(service services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

type profileJSON struct {
	FirstName     string `json:"first_name"`
	PhoneNumber   string `json:"phone_number"`
	PhoneVerified bool   `json:"phone_verified"`
	TimeZone      string `json:"time_zone"`
}

func toProfile(u *models.User) profileJSON {
	return profileJSON{
		FirstName:     u.FirstName,
		PhoneNumber:   u.PhoneNumber,
		PhoneVerified: u.PhoneVerified,
		TimeZone:      u.Zone(),
	}
}

// GET /api/user-profile?userId=
//
// The row is created on first sight of a user id.
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := actingUser(c, c.Query("userId"))
	if !ok {
		return
	}
	u, err := h.service.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[user][profile][get][err] user=%s: %v", userID, err)
		fail(c, statusFor(err), errorText(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "profile": toProfile(u)})
}

// PUT /api/user-profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req struct {
		UserID    string  `json:"userId"`
		FirstName *string `json:"firstName"`
		TimeZone  *string `json:"timeZone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}
	if req.FirstName == nil && req.TimeZone == nil {
		fail(c, http.StatusBadRequest, "No fields provided to update.")
		return
	}

	u, err := h.service.UpdateProfile(c.Request.Context(), userID, models.ProfileUpdate{
		FirstName: req.FirstName,
		TimeZone:  req.TimeZone,
	})
	if err != nil {
		log.Printf("[user][profile][update][err] user=%s: %v", userID, err)
		fail(c, statusFor(err), errorText(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": u})
}
