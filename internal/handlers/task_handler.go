package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbuddy/internal/middleware"
	"taskbuddy/internal/models"
	"taskbuddy/internal/services"
)

// TaskHandler serves the dashboard's task "boxes".
type TaskHandler struct {
	service services.TaskService
}

func NewTaskHandler(service services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

type boxJSON struct {
	models.Task
	TimeResolved bool `json:"time_resolved"`
}

func toBox(t *models.Task) boxJSON {
	return boxJSON{Task: *t, TimeResolved: t.TimeResolved()}
}

// @Summary      Create a task
// @Description  Stores a task; time_value is resolved in the owner's zone or kept as text until it can be
// @Tags         Boxes
// @Accept       json
// @Produce      json
// @Param        request  body      object  true  "{userId, content, time_type, time_value, reminder_offset}"
// @Success      200      {object}  map[string]interface{}
// @Failure      400      {object}  map[string]interface{}
// @Failure      500      {object}  map[string]interface{}
// @Router       /api/boxes [post]
func (h *TaskHandler) Create(c *gin.Context) {
	var req struct {
		UserID         string  `json:"userId"`
		Content        string  `json:"content" binding:"required"`
		TimeType       string  `json:"time_type"`
		TimeValue      *string `json:"time_value"`
		ReminderOffset *int    `json:"reminder_offset"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[box][create][bind][err] %v", err)
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, ok := actingUser(c, req.UserID)
	if !ok {
		return
	}

	typ, valid := models.ParseTimeType(req.TimeType)
	if !valid {
		fail(c, http.StatusBadRequest, services.ErrInvalidTimeType.Error())
		return
	}
	in := services.TimeInput{Type: typ, ReminderOffset: req.ReminderOffset}
	if req.TimeValue != nil {
		in.Value = *req.TimeValue
	}
	if in.ReminderOffset == nil {
		zero := 0
		in.ReminderOffset = &zero
	}
	log.Printf("[box][create] user=%s type=%s raw_time=%q offset=%d", userID, typ, in.Value, *in.ReminderOffset)

	task, err := h.service.Create(c.Request.Context(), userID, req.Content, in)
	if err != nil {
		log.Printf("[box][create][err] user=%s: %v", userID, err)
		fail(c, statusFor(err), errorText(err))
		return
	}
	log.Printf("[box][create][ok] id=%d resolved=%v", task.ID, task.TimeResolved())
	c.JSON(http.StatusOK, gin.H{"success": true, "box": toBox(task)})
}

// @Summary      List a user's tasks
// @Tags         Boxes
// @Produce      json
// @Param        userId  query     string  true  "user id"
// @Success      200     {object}  map[string]interface{}
// @Router       /api/boxes [get]
func (h *TaskHandler) List(c *gin.Context) {
	userID, ok := actingUser(c, c.Query("userId"))
	if !ok {
		return
	}

	tasks, err := h.service.ListByUser(c.Request.Context(), userID)
	if err != nil {
		log.Printf("[box][list][err] user=%s: %v", userID, err)
		fail(c, http.StatusInternalServerError, "failed to retrieve boxes")
		return
	}
	boxes := make([]boxJSON, len(tasks))
	for i := range tasks {
		boxes[i] = toBox(&tasks[i])
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "boxes": boxes})
}

// PUT /api/boxes/:id
//
// Content and time fields are written separately so neither write covers
// the other's columns.
func (h *TaskHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		fail(c, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		UserID         string  `json:"userId"`
		Content        *string `json:"content"`
		TimeType       *string `json:"time_type"`
		TimeValue      *string `json:"time_value"`
		ReminderOffset *int    `json:"reminder_offset"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("[box][update][bind][err] %v", err)
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx := c.Request.Context()
	current, ok := h.owned(c, id, req.UserID)
	if !ok {
		return
	}

	if req.Content != nil {
		if err := h.service.UpdateContent(ctx, id, *req.Content); err != nil {
			log.Printf("[box][update][content][err] id=%d: %v", id, err)
			fail(c, statusFor(err), errorText(err))
			return
		}
	}

	switch {
	case req.TimeType != nil || req.TimeValue != nil:
		in := services.TimeInput{
			Type:           current.TimeType,
			ReminderOffset: req.ReminderOffset,
			KeepValue:      req.TimeValue == nil,
			KeepOffset:     req.ReminderOffset == nil,
		}
		if req.TimeType != nil {
			typ, valid := models.ParseTimeType(*req.TimeType)
			if !valid {
				fail(c, http.StatusBadRequest, services.ErrInvalidTimeType.Error())
				return
			}
			in.Type = typ
		}
		if req.TimeValue != nil {
			in.Value = *req.TimeValue
		}
		log.Printf("[box][update][time] id=%d type=%s raw_time=%q", id, in.Type, in.Value)
		if _, err := h.service.WriteTime(ctx, id, in); err != nil {
			log.Printf("[box][update][time][err] id=%d: %v", id, err)
			fail(c, statusFor(err), errorText(err))
			return
		}
	case req.ReminderOffset != nil:
		if err := h.service.SetReminderOffset(ctx, id, req.ReminderOffset); err != nil {
			log.Printf("[box][update][offset][err] id=%d: %v", id, err)
			fail(c, statusFor(err), errorText(err))
			return
		}
	}

	h.respondBox(c, id)
}

// PUT /api/boxes/:id/reminder
func (h *TaskHandler) UpdateReminder(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		fail(c, http.StatusBadRequest, "invalid id")
		return
	}
	var req struct {
		UserID         string `json:"userId"`
		ReminderOffset *int   `json:"reminder_offset"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := h.owned(c, id, req.UserID); !ok {
		return
	}
	if err := h.service.SetReminderOffset(c.Request.Context(), id, req.ReminderOffset); err != nil {
		log.Printf("[box][reminder][err] id=%d: %v", id, err)
		fail(c, statusFor(err), errorText(err))
		return
	}
	log.Printf("[box][reminder][ok] id=%d", id)
	h.respondBox(c, id)
}

// DELETE /api/boxes/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		fail(c, http.StatusBadRequest, "invalid id")
		return
	}
	if _, ok := h.owned(c, id, c.Query("userId")); !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		log.Printf("[box][delete][err] id=%d: %v", id, err)
		fail(c, statusFor(err), errorText(err))
		return
	}
	log.Printf("[box][delete][ok] id=%d", id)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// owned loads task id and checks it belongs to the acting user when one is
// known. It writes the error response itself.
func (h *TaskHandler) owned(c *gin.Context, id int64, claimed string) (*models.Task, bool) {
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		log.Printf("[box][get][err] id=%d: %v", id, err)
		fail(c, statusFor(err), "box not found")
		return nil, false
	}
	actor := claimed
	if tokenID := c.GetString(middleware.UserIDKey); tokenID != "" {
		actor = tokenID
	}
	if actor != "" && actor != task.UserID {
		log.Printf("[box][deny] id=%d owner=%s actor=%s", id, task.UserID, actor)
		fail(c, http.StatusNotFound, "box not found")
		return nil, false
	}
	return task, true
}

func (h *TaskHandler) respondBox(c *gin.Context, id int64) {
	task, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		log.Printf("[box][reload][err] id=%d: %v", id, err)
		fail(c, statusFor(err), errorText(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "box": toBox(task)})
}
