package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uday169/split-it-app-backend/models"
	"github.com/uday169/split-it-app-backend/utils"
)

// POST /api/groups
func (h *Handler) CreateGroup(c *gin.Context) {
	var req models.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	group, err := h.Groups.Create(c.Request.Context(), utils.GetCurrentUserID(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Group created", group)
}

// GET /api/groups
func (h *Handler) GetGroups(c *gin.Context) {
	groups, err := h.Groups.List(c.Request.Context(), utils.GetCurrentUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", groups)
}

// GET /api/groups/:id
func (h *Handler) GetGroup(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	group, err := h.Groups.Get(c.Request.Context(), utils.GetCurrentUserID(c), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", group)
}

// PUT /api/groups/:id
func (h *Handler) UpdateGroup(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	group, err := h.Groups.Update(c.Request.Context(), utils.GetCurrentUserID(c), groupID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Group updated", group)
}

// DELETE /api/groups/:id
func (h *Handler) DeleteGroup(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	if err := h.Groups.Delete(c.Request.Context(), utils.GetCurrentUserID(c), groupID); err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Group deleted", nil)
}

// GET /api/groups/:id/members
func (h *Handler) GetMembers(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}

	members, err := h.Groups.Members(c.Request.Context(), utils.GetCurrentUserID(c), groupID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", members)
}

// POST /api/groups/:id/members
func (h *Handler) AddMember(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req models.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	result, err := h.Groups.AddMember(c.Request.Context(), utils.GetCurrentUserID(c), groupID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if result.Invited != "" {
		utils.SuccessResponse(c, http.StatusOK, "Invitation sent", result)
		return
	}
	utils.SuccessResponse(c, http.StatusCreated, "Member added", result)
}

// DELETE /api/groups/:id/members/:uid
func (h *Handler) RemoveMember(c *gin.Context) {
	groupID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	memberID, ok := utils.ParamUUID(c, "uid")
	if !ok {
		return
	}

	if err := h.Groups.RemoveMember(c.Request.Context(), utils.GetCurrentUserID(c), groupID, memberID); err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Member removed", nil)
}
