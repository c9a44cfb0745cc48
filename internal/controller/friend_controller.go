package controller

import (
	"clubnet_backend/internal/service"
	"clubnet_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type FriendController struct {
	Friends *service.FriendshipService
}

type FriendRequestRequest struct {
	Username string `json:"username" binding:"required"`
}

func NewFriendController(friends *service.FriendshipService) *FriendController {
	return &FriendController{Friends: friends}
}

func (ctrl *FriendController) SendRequest(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	var req FriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	fr, err := ctrl.Friends.SendRequest(c.Request.Context(), userID, req.Username)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, fr)
}

// ListIncoming returns pending requests addressed to the actor.
func (ctrl *FriendController) ListIncoming(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	reqs, err := ctrl.Friends.ListIncoming(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, reqs)
}

func (ctrl *FriendController) Accept(c *gin.Context) { ctrl.respond(c, true) }

func (ctrl *FriendController) Reject(c *gin.Context) { ctrl.respond(c, false) }

func (ctrl *FriendController) respond(c *gin.Context, accept bool) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	fr, err := ctrl.Friends.Respond(c.Request.Context(), userID, c.Param("username"), accept)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, fr)
}

// Cancel withdraws the actor's pending request to :username.
func (ctrl *FriendController) Cancel(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	if err := ctrl.Friends.Cancel(c.Request.Context(), userID, c.Param("username")); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}

func (ctrl *FriendController) ListFriends(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	friends, err := ctrl.Friends.ListFriends(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, friends)
}

func (ctrl *FriendController) RemoveFriend(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	if err := ctrl.Friends.RemoveFriend(c.Request.Context(), userID, c.Param("username")); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}
