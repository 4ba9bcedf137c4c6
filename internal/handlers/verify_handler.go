package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbuddy/internal/services"
	"taskbuddy/internal/utils"
)

type VerifyHandler struct {
	SMS *services.SMSService
}

func NewVerifyHandler(s *services.SMSService) *VerifyHandler { return &VerifyHandler{SMS: s} }

// POST /api/send-verification-code
func (h *VerifyHandler) SendCode(c *gin.Context) {
	var req struct {
		UserID      string `json:"userId"`
		PhoneNumber string `json:"phoneNumber" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}

	phone, err := h.SMS.SendVerificationCode(c.Request.Context(), userID, req.PhoneNumber)
	if err != nil {
		log.Printf("[verify][send][err] user=%s: %v", userID, err)
		switch statusFor(err) {
		case http.StatusTooManyRequests:
			fail(c, http.StatusTooManyRequests, "too many requests, try later")
		case http.StatusBadRequest:
			fail(c, http.StatusBadRequest, "invalid phone number")
		default:
			fail(c, http.StatusInternalServerError, "could not send verification code")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "phoneNumber": utils.MaskPhone(phone)})
}

// POST /api/verify-phone
func (h *VerifyHandler) VerifyPhone(c *gin.Context) {
	var req struct {
		UserID      string `json:"userId"`
		Code        string `json:"code" binding:"required"`
		PhoneNumber string `json:"phoneNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}

	phone, err := h.SMS.ConfirmVerificationCode(c.Request.Context(), userID, req.Code, req.PhoneNumber)
	if err != nil {
		log.Printf("[verify][confirm][err] user=%s: %v", userID, err)
		switch statusFor(err) {
		case http.StatusBadRequest:
			msg := "Incorrect verification code."
			switch err {
			case services.ErrCodeExpired:
				msg = "code expired, please resend"
			case services.ErrTooManyAttempts:
				msg = "too many attempts, please resend"
			}
			fail(c, http.StatusBadRequest, msg)
		default:
			fail(c, http.StatusInternalServerError, "confirmation failed")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "phoneNumber": phone})
}
