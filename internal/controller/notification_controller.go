package controller

import (
	"clubnet_backend/internal/service"
	"clubnet_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotificationController serves the stored inbox and the live push socket.
type NotificationController struct {
	Inbox *service.NotificationService
	Hub   *service.NotificationHub
}

type MarkReadRequest struct {
	IDs []uint `json:"ids"`
}

func NewNotificationController(inbox *service.NotificationService, hub *service.NotificationHub) *NotificationController {
	return &NotificationController{Inbox: inbox, Hub: hub}
}

func (ctrl *NotificationController) List(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	inbox, err := ctrl.Inbox.List(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, inbox)
}

// MarkRead marks the listed notifications read; an empty body marks all of them.
func (ctrl *NotificationController) MarkRead(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	var req MarkReadRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			util.BadRequest(c, err.Error())
			return
		}
	}

	n, err := ctrl.Inbox.MarkRead(c.Request.Context(), userID, req.IDs)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, gin.H{"updated": n})
}

func (ctrl *NotificationController) Clear(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	n, err := ctrl.Inbox.Clear(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, gin.H{"deleted": n})
}

// HandleWS upgrades the request and streams the actor's notifications.
func (ctrl *NotificationController) HandleWS(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	if ctrl.Hub == nil {
		util.Error(c, http.StatusServiceUnavailable, "live notifications are disabled")
		return
	}
	service.ServeWs(ctrl.Hub, c.Writer, c.Request, userID)
}
