package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kpawlak/taskgrid/internal/common"
	"github.com/kpawlak/taskgrid/internal/logging"
	"github.com/kpawlak/taskgrid/internal/server/bruteforce"
	"github.com/kpawlak/taskgrid/internal/server/messages"
	"github.com/kpawlak/taskgrid/internal/server/security"
	"github.com/kpawlak/taskgrid/internal/server/session"
)

// Handlers contains the HTTP handlers for every endpoint.
type Handlers struct {
	security *security.Manager
	sessions *session.Manager
	inbox    *messages.Manager
	logger   logging.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(sec *security.Manager, sessions *session.Manager, inbox *messages.Manager, logger logging.Logger) *Handlers {
	return &Handlers{
		security: sec,
		sessions: sessions,
		inbox:    inbox,
		logger:   logger,
	}
}

// Health answers the unauthenticated liveness probe.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Register handles account creation.
func (h *Handlers) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.security.Register(c.Request.Context(), req.Username, req.Password); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
			return
		}
		h.logger.Error(c.Request.Context(), "registration failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "registered"})
}

// Login handles authentication. The response body is the token envelope
// encrypted to the public key presented in the request; only the holder of
// the matching private key can read it.
func (h *Handlers) Login(c *gin.Context) {
	var req struct {
		Username  string `json:"username" binding:"required"`
		Password  string `json:"password" binding:"required"`
		PublicKey string `json:"public_key" binding:"required"`
		Signature string `json:"signature"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ciphertext, err := h.security.Login(c.Request.Context(),
		req.Username, req.Password, req.PublicKey, req.Signature, c.ClientIP())
	if err != nil {
		var lockout *bruteforce.LockoutError
		switch {
		case errors.As(err, &lockout):
			retry := int(lockout.RetryAfter.Seconds()) + 1
			c.Header("Retry-After", fmt.Sprintf("%d", retry))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many login attempts",
				"retry_after": retry,
			})
		case errors.Is(err, common.ErrorUnauthorized):
			// One body for unknown user, wrong password and bad
			// signature: no user enumeration.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		case errors.Is(err, common.ErrorInvalidKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid public key"})
		default:
			h.logger.Error(c.Request.Context(), "login failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"encrypted": ciphertext})
}

// Ping is the authenticated echo endpoint.
func (h *Handlers) Ping(c *gin.Context) {
	h.encrypted(c, gin.H{"message": "pong"})
}

// GetTask returns the operands of the caller's outstanding arithmetic
// task, creating one when none exists. The caller is expected to add them.
func (h *Handlers) GetTask(c *gin.Context) {
	a, b := h.sessions.GetOrCreateTask(c.GetString(ContextUsername))
	h.encrypted(c, gin.H{"a": a, "b": b})
}

// SubmitResult grades the caller's answer to their outstanding task.
func (h *Handlers) SubmitResult(c *gin.Context) {
	var req struct {
		Result *int `json:"result" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	verdict, err := h.sessions.SubmitResult(c.GetString(ContextUsername), *req.Result)
	if err != nil {
		if errors.Is(err, common.ErrorNoActiveTask) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no active task"})
			return
		}
		h.logger.Error(c.Request.Context(), "result submission failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.encrypted(c, gin.H{"result": verdict})
}

// CreateBroadcastTask generates a new shared task. Admin only.
func (h *Handlers) CreateBroadcastTask(c *gin.Context) {
	if !c.GetBool(ContextAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin only"})
		return
	}

	task, err := h.sessions.CreateBroadcastTask(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "broadcast task creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.encrypted(c, gin.H{"task_id": task.ID, "task": task.Content})
}

// LatestBroadcastTask returns the newest shared task.
func (h *Handlers) LatestBroadcastTask(c *gin.Context) {
	task, err := h.sessions.LatestBroadcastTask(c.Request.Context())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no task available"})
			return
		}
		h.logger.Error(c.Request.Context(), "broadcast task lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.encrypted(c, gin.H{"task_id": task.ID, "task": task.Content})
}

// SubmitBroadcastResult grades the caller's answer to a shared task. Each
// user answers each task at most once.
func (h *Handlers) SubmitBroadcastResult(c *gin.Context) {
	var req struct {
		TaskID string   `json:"task_id" binding:"required"`
		Answer *float64 `json:"answer" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	verdict, err := h.sessions.SubmitBroadcastResult(c.Request.Context(),
		req.TaskID, *req.Answer, c.GetString(ContextUsername))
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		case errors.Is(err, common.ErrorAlreadySubmitted):
			c.JSON(http.StatusConflict, gin.H{"error": "result already submitted"})
		default:
			h.logger.Error(c.Request.Context(), "broadcast result submission failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	h.encrypted(c, gin.H{"result": verdict})
}

// BroadcastHistory returns every shared task with submission aggregates,
// newest first.
func (h *Handlers) BroadcastHistory(c *gin.Context) {
	stats, err := h.sessions.BroadcastHistory(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "history lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	rows := make([]gin.H, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, gin.H{
			"task_id":           s.ID,
			"task":              s.Content,
			"total_submissions": s.TotalSubmissions,
			"correct":           s.CorrectCount,
			"incorrect":         s.IncorrectCount,
			"accuracy":          s.Accuracy(),
		})
	}

	h.encrypted(c, gin.H{"history": rows})
}

// ListSessions returns the latest login record per user.
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions, err := h.sessions.ListActiveSessions(c.Request.Context())
	if err != nil {
		h.logger.Error(c.Request.Context(), "session lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	rows := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, gin.H{
			"username":   s.Username,
			"ip_address": s.IPAddress,
			"timestamp":  s.Timestamp,
		})
	}

	h.encrypted(c, gin.H{"sessions": rows})
}

// SendMessage queues an encrypted message for another user.
func (h *Handlers) SendMessage(c *gin.Context) {
	var req struct {
		To      string `json:"to" binding:"required"`
		Message string `json:"message" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	sender := c.GetString(ContextUsername)
	if err := h.inbox.Send(c.Request.Context(), req.To, req.Message, sender); err != nil {
		switch {
		case errors.Is(err, common.ErrorSelfSend):
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot send message to yourself"})
		case errors.Is(err, common.ErrorRecipientUnavailable):
			c.JSON(http.StatusNotFound, gin.H{"error": "recipient not available"})
		default:
			h.logger.Error(c.Request.Context(), "message send failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	h.encrypted(c, gin.H{"message": "sent"})
}

// ReceiveMessage pops the oldest message from the caller's inbox. An empty
// inbox answers with a null-message sentinel, not an error.
func (h *Handlers) ReceiveMessage(c *gin.Context) {
	sealed, ok := h.inbox.Receive(c.GetString(ContextUsername))
	if !ok {
		c.JSON(http.StatusOK, gin.H{"message": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"encrypted": sealed})
}

// encrypted seals payload for the caller and writes the standard envelope.
// Callers without a registered key get a 400 telling them to log in with
// one; this is the only authenticated error that reveals detail.
func (h *Handlers) encrypted(c *gin.Context, payload any) {
	username := c.GetString(ContextUsername)

	ciphertext, err := h.security.EncryptResponse(c.Request.Context(), username, payload)
	if err != nil {
		if errors.Is(err, common.ErrorKeyMissing) || errors.Is(err, common.ErrorInvalidKey) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no valid public key registered"})
			return
		}
		h.logger.Error(c.Request.Context(), "response encryption failed", "username", username, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"encrypted": ciphertext})
}
