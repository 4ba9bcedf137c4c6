package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"taskbuddy/internal/middleware"
	"taskbuddy/internal/repositories"
	"taskbuddy/internal/services"
	"taskbuddy/internal/utils"
)

// actingUser picks the user a request acts for and writes the error
// response when there is none. A verified token wins; a claimed id that
// disagrees with the token is rejected.
func actingUser(c *gin.Context, claimed string) (string, bool) {
	claimed = strings.TrimSpace(claimed)
	if tokenID := c.GetString(middleware.UserIDKey); tokenID != "" {
		if claimed != "" && claimed != tokenID {
			fail(c, http.StatusForbidden, "userId does not match token")
			return "", false
		}
		return tokenID, true
	}
	if claimed == "" {
		fail(c, http.StatusBadRequest, "userId is required")
		return "", false
	}
	return claimed, true
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"success": false, "error": msg})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// statusFor maps service and repository sentinels to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrEmptyContent),
		errors.Is(err, services.ErrInvalidTimeType),
		errors.Is(err, services.ErrTimeValueRequired),
		errors.Is(err, services.ErrInvalidOffset),
		errors.Is(err, services.ErrInvalidTimeZone),
		errors.Is(err, services.ErrCodeExpired),
		errors.Is(err, services.ErrCodeInvalid),
		errors.Is(err, services.ErrTooManyAttempts),
		errors.Is(err, utils.ErrInvalidPhone):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrResendThrottled):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func errorText(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
