package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/utils"
)

// POST /auth/send-otp
func (h *Handler) SendOTP(c *gin.Context) {
	var req models.SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if err := h.Auth.SendOTP(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "OTP sent to your email", nil)
}

// POST /auth/verify-otp
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	resp, err := h.Auth.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Login successful", resp)
}
