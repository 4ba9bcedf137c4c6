package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskbuddy/internal/services"
	"taskbuddy/internal/timeparse"
)

type TimeHandler struct {
	times *services.TimeService
}

func NewTimeHandler(times *services.TimeService) *TimeHandler {
	return &TimeHandler{times: times}
}

// @Summary      Resolve a time phrase
// @Description  Interprets a natural-language or ISO time in the given IANA zone and returns the UTC instant
// @Tags         Time
// @Accept       json
// @Produce      json
// @Param        request  body      object  true  "{timeString, timeZone}"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]interface{}
// @Router       /api/parse-time [post]
func (h *TimeHandler) Parse(c *gin.Context) {
	var req struct {
		TimeString string `json:"timeString"`
		TimeZone   string `json:"timeZone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.TimeString) == "" {
		fail(c, http.StatusBadRequest, "Time string is required")
		return
	}

	p, err := h.times.Parse(req.TimeString, req.TimeZone)
	if err != nil {
		if errors.Is(err, timeparse.ErrUnresolvable) || errors.Is(err, timeparse.ErrEmptyPhrase) {
			log.Printf("[time][parse][miss] phrase=%q zone=%q", req.TimeString, req.TimeZone)
			c.JSON(http.StatusOK, gin.H{"success": false, "error": "Could not parse time expression"})
			return
		}
		log.Printf("[time][parse][err] phrase=%q: %v", req.TimeString, err)
		fail(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"input":   p.Input,
		"parsed":  timeparse.FormatInstant(p.Instant),
		"display": p.Display,
		"zone":    p.Zone,
	})
}
