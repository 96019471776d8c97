package api

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"docentgo/internal/identity"
	"docentgo/internal/models"
	"docentgo/internal/pipeline"
	"docentgo/internal/prefs"
	"docentgo/internal/state"
	"docentgo/internal/status"
	"docentgo/internal/storage"
)

const maxAttachmentBytes = 32 << 20

// Handler wires HTTP routes to the shell: conversations, the query
// pipeline, preferences, and run status.
type Handler struct {
	store    *storage.Store
	prefs    *prefs.Store
	app      *state.AppState
	reporter *status.Reporter
	orch     *pipeline.Orchestrator
	ident    *identity.Provider
	logger   zerolog.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(
	store *storage.Store,
	prefStore *prefs.Store,
	app *state.AppState,
	reporter *status.Reporter,
	orch *pipeline.Orchestrator,
	ident *identity.Provider,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		store:    store,
		prefs:    prefStore,
		app:      app,
		reporter: reporter,
		orch:     orch,
		ident:    ident,
		logger:   logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.GET("/conversations", h.listConversations)
	api.POST("/conversations/new", h.newConversation)
	api.POST("/conversations/:id/open", h.openConversation)
	api.POST("/restore", h.restoreSession)
	api.GET("/conversations/:id/messages", h.getMessages)
	api.POST("/query", h.sendQuery)
	api.GET("/status", h.getStatus)
	api.GET("/preferences", h.getPreferences)
	api.PUT("/preferences", h.setPreferences)
	api.GET("/identity", h.getIdentity)
	api.DELETE("/account", h.deleteAccount)
}

func (h *Handler) listConversations(c *gin.Context) {
	convs, err := h.store.ListConversations(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list conversations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list conversations"})
		return
	}
	if convs == nil {
		convs = []models.Conversation{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h *Handler) newConversation(c *gin.Context) {
	h.orch.NewConversation()
	c.Status(http.StatusNoContent)
}

func (h *Handler) openConversation(c *gin.Context) {
	id := c.Param("id")
	if strings.TrimSpace(id) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	if err := h.orch.OpenConversation(c.Request.Context(), id); err != nil {
		h.logger.Error().Err(err).Str("conversation", id).Msg("open conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load conversation"})
		return
	}
	msgs := h.app.ActiveMessages.Get()
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": id, "messages": msgs})
}

// restoreSession reattaches a fresh view to the last-active conversation.
// A marker pointing at a conversation that no longer exists is cleared and
// the view starts empty.
func (h *Handler) restoreSession(c *gin.Context) {
	if err := h.app.RestoreLast(c.Request.Context()); err != nil {
		h.logger.Error().Err(err).Msg("restore last conversation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not restore conversation"})
		return
	}
	msgs := h.app.ActiveMessages.Get()
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"conversation_id": h.app.ActiveConversationID.Get(),
		"messages":        msgs,
	})
}

func (h *Handler) getMessages(c *gin.Context) {
	msgs, err := h.store.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error().Err(err).Msg("list messages")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// sendQuery accepts one utterance plus an optional attachment and starts a
// pipeline run. It always accepts: a new run supersedes whatever is in
// flight, which is the invalidation mechanism, not an error.
func (h *Handler) sendQuery(c *gin.Context) {
	text := strings.TrimSpace(c.PostForm("text"))

	var attachment *pipeline.Attachment
	if fileHeader, err := c.FormFile("file"); err == nil && fileHeader != nil {
		if fileHeader.Size > maxAttachmentBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "attachment too large"})
			return
		}
		f, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read attachment"})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read attachment"})
			return
		}
		attachment = &pipeline.Attachment{Name: fileHeader.Filename, Data: data}
	}

	if text == "" && attachment == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty query"})
		return
	}

	// The run outlives this request; status is polled via /api/status.
	go h.orch.Send(context.Background(), text, attachment)
	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

type statusEntry struct {
	Text string      `json:"text"`
	Kind status.Kind `json:"kind"`
}

func (h *Handler) getStatus(c *gin.Context) {
	label, entries := h.reporter.Snapshot()
	out := make([]statusEntry, 0, len(entries))
	for _, e := range entries {
		text, kind := status.Classify(e.Text)
		out = append(out, statusEntry{Text: text, Kind: kind})
	}
	c.JSON(http.StatusOK, gin.H{
		"phase":                  h.orch.Phase.Get(),
		"status":                 label,
		"log":                    out,
		"active_conversation_id": h.app.ActiveConversationID.Get(),
	})
}

func (h *Handler) getPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, h.prefs.Get())
}

func (h *Handler) setPreferences(c *gin.Context) {
	var patch prefs.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	updated, err := h.prefs.Set(patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) getIdentity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state": h.ident.State.Get(),
		"name":  h.ident.Name.Get(),
	})
}

// deleteAccount wipes both durable collections together and resets the
// in-memory mirror, so no orphaned messages survive.
func (h *Handler) deleteAccount(c *gin.Context) {
	if err := h.store.WipeAll(c.Request.Context()); err != nil {
		h.logger.Error().Err(err).Msg("wipe store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete data"})
		return
	}
	h.orch.NewConversation()
	c.Status(http.StatusNoContent)
}
