// Chat HTTP handlers.
//
// This file exposes REST endpoints for conversations:
//   - POST   /api/v1/chat                 (one conversational turn, new or existing)
//   - GET    /api/v1/conversations        (list, paginated)
//   - GET    /api/v1/conversations/{id}   (full transcript, persona seed stripped)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. Authentication and quota
// admission happen upstream in middleware; by the time a handler runs the
// account is resolved and admitted.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/http/middleware"
	"github.com/tbourn/go-legal-assistant-backend/internal/services"
	"github.com/tbourn/go-legal-assistant-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ChatService defines the conversation operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Converse runs one turn: empty conversationID creates a conversation,
	// a supplied id continues it (or fails with ErrConversationNotFound).
	Converse(ctx context.Context, accountID, conversationID, message string) (*services.ChatResult, error)
	// History returns a conversation transcript with the system seed removed.
	History(ctx context.Context, accountID, conversationID string) (*domain.ChatEntry, error)
	// ListPage returns a page of the account's conversations and the total count.
	ListPage(ctx context.Context, accountID string, page, pageSize int) ([]domain.ChatEntry, int64, error)
}

//
// DTOs
//

// ChatRequest is the JSON payload for one conversational turn.
type ChatRequest struct {
	// Message is the user's prompt. Required.
	Message string `json:"message" binding:"required" example:"What is the notice period for terminating a lease?"`
	// ConversationID continues an existing conversation when set.
	ConversationID string `json:"conversationId,omitempty" example:"CID1756382400000-9f03b042"`
}

// ChatResponse is the outcome of one turn. The assistant text is serialized
// as "response" on the wire.
type ChatResponse struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
	Reply          string `json:"response"`
	IsNew          bool   `json:"isNew"`
}

// ConversationSummary is one row in the conversation list.
type ConversationSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Day       string `json:"day"`
	UpdatedAt string `json:"updatedAt"`
}

// MessageView is one visible transcript message.
type MessageView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationDetail is the full transcript response.
type ConversationDetail struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Day      string        `json:"day"`
	Messages []MessageView `json:"messages"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

//
// Handler wiring
//

// ChatHandlers groups the conversation endpoints.
type ChatHandlers struct {
	svc ChatService
}

// NewChatHandlers constructs a ChatHandlers bound to the given service.
func NewChatHandlers(svc ChatService) *ChatHandlers {
	return &ChatHandlers{svc: svc}
}

// accountID extracts the authenticated account id from the Gin context (set
// by the API-key middleware upstream).
func accountID(c *gin.Context) string {
	return middleware.AccountIDFrom(c)
}

// clampPagination bounds the page and page_size query params to the list
// endpoints' defaults and limits.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.PageWindow(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Run one conversational turn
// @Description Sends a message; omitting conversationId starts a new conversation.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "Chat payload"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Generation failed"
// @Router      /chat [post]
func (h *ChatHandlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message is required")
		return
	}

	res, err := h.svc.Converse(c.Request.Context(), accountID(c), strings.TrimSpace(req.ConversationID), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message must not be empty")
		case errors.Is(err, services.ErrMessageTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message exceeds the maximum length")
		case errors.Is(err, services.ErrConversationNotFound):
			fail(c, http.StatusNotFound, ErrCodeConversationNotFound, "conversation not found")
		case errors.Is(err, services.ErrGenerationFailed):
			fail(c, http.StatusBadGateway, ErrCodeGenerationFailed, "generation service unavailable")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ChatResponse{
		ConversationID: res.ConversationID,
		Title:          res.Title,
		Reply:          res.Reply,
		IsNew:          res.IsNew,
	})
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversations (paginated)
// @Description Returns a page of the account's conversations, newest first.
// @Tags        Chat
// @Produce     json
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListConversationsResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations [get]
func (h *ChatHandlers) ListConversations(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.svc.ListPage(c.Request.Context(), accountID(c), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	summaries := make([]ConversationSummary, 0, len(items))
	for _, e := range items {
		summaries = append(summaries, ConversationSummary{
			ID:        e.ID,
			Title:     e.Title,
			Day:       e.Day,
			UpdatedAt: e.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: summaries,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetConversation godoc
// @ID          getConversation
// @Summary     Fetch a conversation transcript
// @Description Returns the conversation with the persona seed stripped.
// @Tags        Chat
// @Produce     json
//
// @Param       id  path  string  true  "Conversation ID"  example(CID1756382400000-9f03b042)
//
// @Success     200  {object}  handlers.ConversationDetail
// @Failure     404  {object}  handlers.ErrorResponse  "Conversation not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /conversations/{id} [get]
func (h *ChatHandlers) GetConversation(c *gin.Context) {
	id := c.Param("id")

	entry, err := h.svc.History(c.Request.Context(), accountID(c), id)
	if err != nil {
		if errors.Is(err, services.ErrConversationNotFound) {
			fail(c, http.StatusNotFound, ErrCodeConversationNotFound, "conversation not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	msgs := make([]MessageView, 0, len(entry.Messages))
	for _, m := range entry.Messages {
		msgs = append(msgs, MessageView{Role: m.Role, Content: m.Content})
	}

	ok(c, http.StatusOK, ConversationDetail{
		ID:       entry.ID,
		Title:    entry.Title,
		Day:      entry.Day,
		Messages: msgs,
	})
}
