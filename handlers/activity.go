package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/utils"
)

// GET /api/activity?page=1&limit=20
func (h *Handler) GetActivity(c *gin.Context) {
	var page utils.PaginationQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	activities, err := h.Activity.ForUser(c.Request.Context(), utils.GetCurrentUserID(c), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", activities)
}

// GET /api/groups/:id/activity
func (h *Handler) GetGroupActivity(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var page utils.PaginationQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	activities, err := h.Activity.ForGroup(c.Request.Context(), utils.GetCurrentUserID(c), groupID, page)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", activities)
}
