package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	gin "github.com/gin-gonic/gin"

	"linkup/internal/app/conversations"
	"linkup/internal/app/dto"
	"linkup/internal/domain/chat"
)

// ConversationHTTP exposes the aggregation engine endpoints.
type ConversationHTTP interface {
	List(c *gin.Context)
	Refresh(c *gin.Context)
	Search(c *gin.Context)
	StartThread(c *gin.Context)
	RenameThread(c *gin.Context)
	Hide(c *gin.Context)
	Leave(c *gin.Context)
}

// ConversationHandler bridges HTTP with the session's sync engine. It holds
// no business logic: snapshots in, engine calls out.
type ConversationHandler struct {
	Engine   *conversations.Engine
	Searcher *conversations.Searcher
	Me       chat.UserID
	Logger   *slog.Logger
}

// List returns the current aggregated conversation list snapshot.
func (h ConversationHandler) List(c *gin.Context) {
	items := h.Engine.Snapshot()
	out := dto.ConversationList{Items: make([]dto.Conversation, 0, len(items))}
	for _, conv := range items {
		out.Items = append(out.Items, toDTO(conv))
	}
	c.JSON(http.StatusOK, out)
}

// Refresh schedules a full re-aggregation.
func (h ConversationHandler) Refresh(c *gin.Context) {
	h.Engine.RequestRefresh()
	c.Status(http.StatusAccepted)
}

// Search runs a debounced message-content search and returns matching
// conversation ids. A superseded query answers 204: a newer query owns the
// result now.
func (h ConversationHandler) Search(c *gin.Context) {
	query := c.Query("q")
	res, delivered := <-h.Searcher.Submit(c.Request.Context(), h.Me, query)
	if !delivered {
		c.Status(http.StatusNoContent)
		return
	}
	if res.Err != nil {
		h.Logger.Warn("search failed", "error", res.Err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search temporarily unavailable"})
		return
	}
	ids := make([]string, 0, len(res.IDs))
	for id := range res.IDs {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	c.JSON(http.StatusOK, dto.SearchMatches{Query: res.Query, IDs: ids})
}

// StartThread creates (or resolves to an existing) group thread.
func (h ConversationHandler) StartThread(c *gin.Context) {
	var req dto.StartThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.ParticipantIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "participant_ids is required"})
		return
	}
	participants := make([]chat.UserID, 0, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		participants = append(participants, chat.UserID(strings.TrimSpace(id)))
	}
	threadID, created, err := h.Engine.StartThread(c.Request.Context(), participants)
	if err != nil {
		h.respondEngineError(c, err, "start thread")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, dto.StartThreadResponse{ThreadID: string(threadID), Created: created})
}

// RenameThread sanitizes and applies a new thread name.
func (h ConversationHandler) RenameThread(c *gin.Context) {
	var req dto.RenameThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	threadID := chat.ThreadID(c.Param("id"))
	if err := h.Engine.RenameThread(c.Request.Context(), threadID, req.Name); err != nil {
		h.respondEngineError(c, err, "rename thread")
		return
	}
	c.Status(http.StatusNoContent)
}

// Hide soft-hides a pairwise conversation for the caller.
func (h ConversationHandler) Hide(c *gin.Context) {
	id, isGroup, err := chat.ParseConversationID(c.Param("id"))
	if err != nil || isGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "a pairwise conversation id is required"})
		return
	}
	if err := h.Engine.HideConversation(c.Request.Context(), chat.UserID(id)); err != nil {
		h.respondEngineError(c, err, "hide conversation")
		return
	}
	c.Status(http.StatusNoContent)
}

// Leave removes the caller from a group thread.
func (h ConversationHandler) Leave(c *gin.Context) {
	threadID := chat.ThreadID(c.Param("id"))
	if err := h.Engine.LeaveThread(c.Request.Context(), threadID); err != nil {
		h.respondEngineError(c, err, "leave thread")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h ConversationHandler) respondEngineError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, chat.ErrInvalidID), errors.Is(err, chat.ErrInvalidThreadName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrThreadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotAMember):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		h.Logger.Error(op+" failed", "error", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "temporarily unavailable"})
	}
}

func toDTO(conv chat.Conversation) dto.Conversation {
	out := dto.Conversation{
		ID:             string(conv.ID),
		IsGroup:        conv.IsGroup,
		ThreadID:       string(conv.ThreadID),
		DisplayName:    conv.DisplayName,
		AvatarInitials: conv.AvatarInitials,
		AvatarURL:      conv.AvatarURL,
		LastMessage:    conv.LastMessagePreview,
		LastMessageAt:  conv.LastMessageTimestamp,
		UnreadCount:    conv.UnreadCount,
		HasUnread:      conv.HasUnread(),
		RoleLabel:      conv.RoleLabel,
		IsAdmin:        conv.IsAdmin,
	}
	for _, p := range conv.Participants {
		out.Participants = append(out.Participants, dto.Participant{
			ID:          string(p.ID),
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			AvatarURL:   p.AvatarURL,
			Affiliation: p.Affiliation,
		})
	}
	for _, b := range conv.Badges {
		out.Badges = append(out.Badges, dto.Badge{
			Icon:        b.Icon,
			ImageURL:    b.ImageURL,
			Label:       b.Label,
			Description: b.Description,
		})
	}
	return out
}
