package controller

import (
	"clubnet_backend/internal/service"
	"clubnet_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ThreadController serves conversation threads and their messages.
type ThreadController struct {
	Threads *service.ThreadService
}

type StartThreadRequest struct {
	Usernames []string `json:"usernames" binding:"required,min=1"`
}

type SendMessageRequest struct {
	Body string `json:"body"`
}

func NewThreadController(threads *service.ThreadService) *ThreadController {
	return &ThreadController{Threads: threads}
}

// StartThread resolves the actor plus the named users to one thread, creating it on
// first use.
func (ctrl *ThreadController) StartThread(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	var req StartThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	thread, err := ctrl.Threads.StartThread(c.Request.Context(), userID, req.Usernames)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, thread)
}

func (ctrl *ThreadController) ListThreads(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	threads, err := ctrl.Threads.ListThreads(c.Request.Context(), userID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, threads)
}

func (ctrl *ThreadController) GetThread(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	threadID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	thread, err := ctrl.Threads.GetThread(c.Request.Context(), userID, threadID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, thread)
}

// LeaveThread drops the actor from a direct or group thread.
func (ctrl *ThreadController) LeaveThread(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	threadID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	if err := ctrl.Threads.LeaveThread(c.Request.Context(), userID, threadID); err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, nil)
}

// ListMessages returns the most recent history, newest first.
func (ctrl *ThreadController) ListMessages(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	threadID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	msgs, err := ctrl.Threads.ListMessages(c.Request.Context(), userID, threadID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, msgs)
}

func (ctrl *ThreadController) SendMessage(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	threadID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.BadRequest(c, err.Error())
		return
	}

	msg, err := ctrl.Threads.SendMessage(c.Request.Context(), userID, threadID, req.Body)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Created(c, msg)
}

func (ctrl *ThreadController) MarkRead(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	threadID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	n, err := ctrl.Threads.MarkThreadRead(c.Request.Context(), userID, threadID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, gin.H{"updated": n})
}

func (ctrl *ThreadController) TogglePin(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	messageID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	msg, err := ctrl.Threads.TogglePin(c.Request.Context(), userID, messageID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, msg)
}

// ClassThread joins the actor to the class thread, creating it if needed.
func (ctrl *ThreadController) ClassThread(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	courseID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	thread, err := ctrl.Threads.JoinClassThread(c.Request.Context(), userID, courseID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, thread)
}

func (ctrl *ThreadController) ClubThread(c *gin.Context) {
	userID, ok := actor(c)
	if !ok {
		return
	}
	clubID, ok := uintParam(c, "id")
	if !ok {
		return
	}
	thread, err := ctrl.Threads.ClubThread(c.Request.Context(), userID, clubID)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	util.Success(c, thread)
}
