package controller

import (
	"clubnet_backend/internal/service"
	"clubnet_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ClubController serves clubs, their memberships, invites and resources.
type ClubController struct {
	Members   *service.MembershipService
	Resources *service.ClubResourceService
}

type CreateClubRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"isPrivate"`
}

type SetRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type InviteRequest struct {
	Username string `json:"username" binding:"required"`
}

type PostRequest struct {
	Content string `json:"content" binding:"required"`
}

func NewClubController(members *service.MembershipService, resources *service.ClubResourceService) *ClubController {
	return &ClubController{Members: members, Resources: resources}
}

func (ctrl *ClubController) CreateClub(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	var req CreateClubRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	club, err := ctrl.Members.CreateClub(c.Request.Context(), userID, req.Name, req.Description, req.IsPrivate)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, club)
}

func (ctrl *ClubController) ListClubs(c *gin.Context) {
	clubs, err := ctrl.Members.ListClubs(c.Request.Context())
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, clubs)
}

func (ctrl *ClubController) ListMyClubs(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubs, err := ctrl.Members.ListMyClubs(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, clubs)
}

// GetClub returns the club and its members.
func (ctrl *ClubController) GetClub(c *gin.Context) {
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	detail, err := ctrl.Members.ClubDetail(c.Request.Context(), clubID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, detail)
}

func (ctrl *ClubController) ListMembers(c *gin.Context) {
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	members, err := ctrl.Members.ListMembers(c.Request.Context(), clubID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, members)
}

func (ctrl *ClubController) Join(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	m, err := ctrl.Members.JoinClub(c.Request.Context(), userID, clubID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, m)
}

func (ctrl *ClubController) Leave(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Members.LeaveClub(c.Request.Context(), userID, clubID); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}

// DeleteClub removes the club with its memberships, resources and linked thread.
func (ctrl *ClubController) DeleteClub(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Members.DeleteClub(c.Request.Context(), userID, clubID); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}

func (ctrl *ClubController) SetRole(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	m, err := ctrl.Members.SetRole(c.Request.Context(), userID, clubID, c.Param("username"), req.Role)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, m)
}

func (ctrl *ClubController) RemoveMember(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Members.RemoveMember(c.Request.Context(), userID, clubID, c.Param("username")); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}

func (ctrl *ClubController) Invite(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	inv, err := ctrl.Members.InviteMember(c.Request.Context(), userID, clubID, req.Username)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, inv)
}

func (ctrl *ClubController) ListInvites(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	invites, err := ctrl.Members.ListMyInvites(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, invites)
}

func (ctrl *ClubController) AcceptInvite(c *gin.Context) { ctrl.respondInvite(c, true) }

func (ctrl *ClubController) RejectInvite(c *gin.Context) { ctrl.respondInvite(c, false) }

func (ctrl *ClubController) respondInvite(c *gin.Context, accept bool) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	inviteID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	inv, err := ctrl.Members.RespondInvite(c.Request.Context(), userID, inviteID, accept)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, inv)
}

func (ctrl *ClubController) CreateEvent(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var in service.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	ev, err := ctrl.Resources.CreateEvent(c.Request.Context(), userID, clubID, in)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, ev)
}

func (ctrl *ClubController) UpdateEvent(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	eventID, ok := uintParam(c, "eventId")
	if !ok {
		return
	}
	var in service.EventInput
	if err := c.ShouldBindJSON(&in); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	ev, err := ctrl.Resources.UpdateEvent(c.Request.Context(), userID, clubID, eventID, in)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, ev)
}

func (ctrl *ClubController) DeleteEvent(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	eventID, ok := uintParam(c, "eventId")
	if !ok {
		return
	}
	if err := ctrl.Resources.DeleteEvent(c.Request.Context(), userID, clubID, eventID); err != nil {
		util.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctrl *ClubController) ListEvents(c *gin.Context) {
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	events, err := ctrl.Resources.ListEvents(c.Request.Context(), clubID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, events)
}

func (ctrl *ClubController) CreatePost(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req PostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	post, err := ctrl.Resources.CreatePost(c.Request.Context(), userID, clubID, req.Content)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, post)
}

func (ctrl *ClubController) DeletePost(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	postID, ok := uintParam(c, "postId")
	if !ok {
		return
	}
	if err := ctrl.Resources.DeletePost(c.Request.Context(), userID, clubID, postID); err != nil {
		util.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (ctrl *ClubController) ListPosts(c *gin.Context) {
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	posts, err := ctrl.Resources.ListPosts(c.Request.Context(), clubID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, posts)
}
