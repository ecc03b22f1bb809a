package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/utils"
)

// GET /api/users/me
func (h *Handler) GetProfile(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), utils.GetCurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", user)
}

// PATCH /api/users/me
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	user, err := h.Users.Update(c.Request.Context(), utils.GetCurrentUserID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Profile updated", user)
}

// PUT /api/users/me/fcm-token
func (h *Handler) UpdateFCMToken(c *gin.Context) {
	var req struct {
		FCMToken string `json:"fcm_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	if _, err := h.Users.Update(c.Request.Context(), utils.GetCurrentUserID(c), models.UpdateUserRequest{FCMToken: req.FCMToken}); err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "FCM token updated", nil)
}
