package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/services"
)

// fakeChatService returns canned results and records the arguments it saw.
type fakeChatService struct {
	converseRes *services.ChatResult
	converseErr error

	historyRes *domain.ChatEntry
	historyErr error

	listItems []domain.ChatEntry
	listTotal int64
	listErr   error

	gotAccountID      string
	gotConversationID string
	gotMessage        string
	gotPage           int
	gotPageSize       int
}

func (f *fakeChatService) Converse(_ context.Context, accountID, conversationID, message string) (*services.ChatResult, error) {
	f.gotAccountID, f.gotConversationID, f.gotMessage = accountID, conversationID, message
	return f.converseRes, f.converseErr
}

func (f *fakeChatService) History(_ context.Context, accountID, conversationID string) (*domain.ChatEntry, error) {
	f.gotAccountID, f.gotConversationID = accountID, conversationID
	return f.historyRes, f.historyErr
}

func (f *fakeChatService) ListPage(_ context.Context, accountID string, page, pageSize int) ([]domain.ChatEntry, int64, error) {
	f.gotAccountID, f.gotPage, f.gotPageSize = accountID, page, pageSize
	return f.listItems, f.listTotal, f.listErr
}

func chatRouter(svc ChatService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewChatHandlers(svc)
	r := gin.New()
	r.POST("/chat", h.Chat)
	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:id", h.GetConversation)
	return r
}

func TestChat_Success(t *testing.T) {
	fake := &fakeChatService{
		converseRes: &services.ChatResult{
			ConversationID: "CID1-abc",
			Title:          "Lease Review",
			Reply:          "Here you go.",
			IsNew:          true,
		},
	}
	r := chatRouter(fake)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat",
		strings.NewReader(`{"message":"  review my lease  "}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp ChatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ConversationID != "CID1-abc" || !resp.IsNew || resp.Reply != "Here you go." {
		t.Fatalf("response: %+v", resp)
	}
	// The assistant text rides the "response" key on the wire.
	var raw map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if raw["response"] != "Here you go." {
		t.Fatalf("wire key 'response' = %v, body=%s", raw["response"], w.Body.String())
	}
	if _, stale := raw["reply"]; stale {
		t.Fatalf("unexpected 'reply' key in body: %s", w.Body.String())
	}
	if fake.gotConversationID != "" {
		t.Fatalf("no conversationId in request, service saw %q", fake.gotConversationID)
	}
}

func TestChat_MissingMessageIsBadRequest(t *testing.T) {
	r := chatRouter(&fakeChatService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeBadRequest {
		t.Fatalf("code = %q", resp.Code)
	}
}

func TestChat_ServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty message", services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeBadRequest},
		{"too long", services.ErrMessageTooLong, http.StatusBadRequest, ErrCodeBadRequest},
		{"not found", services.ErrConversationNotFound, http.StatusNotFound, ErrCodeConversationNotFound},
		{"generation failed", services.ErrGenerationFailed, http.StatusBadGateway, ErrCodeGenerationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := chatRouter(&fakeChatService{converseErr: tc.err})

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/chat",
				strings.NewReader(`{"message":"hi","conversationId":"CID1-x"}`))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tc.wantStatus)
			}
			var resp ErrorResponse
			_ = json.Unmarshal(w.Body.Bytes(), &resp)
			if resp.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", resp.Code, tc.wantCode)
			}
		})
	}
}

func TestListConversations_PaginationMetadata(t *testing.T) {
	updated := time.Date(2025, 8, 28, 9, 30, 0, 0, time.UTC)
	fake := &fakeChatService{
		listItems: []domain.ChatEntry{
			{ID: "CID1-a", Title: "First", Day: "2025-08-28", UpdatedAt: updated},
			{ID: "CID1-b", Title: "Second", Day: "2025-08-27", UpdatedAt: updated},
		},
		listTotal: 5,
	}
	r := chatRouter(fake)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations?page=2&page_size=2", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ListConversationsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fake.gotPage != 2 || fake.gotPageSize != 2 {
		t.Fatalf("service saw page=%d size=%d", fake.gotPage, fake.gotPageSize)
	}
	p := resp.Pagination
	if p.Total != 5 || p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("pagination: %+v", p)
	}
	if len(resp.Conversations) != 2 {
		t.Fatalf("rows = %d", len(resp.Conversations))
	}
	if resp.Conversations[0].UpdatedAt != "2025-08-28T09:30:00Z" {
		t.Fatalf("updatedAt = %q", resp.Conversations[0].UpdatedAt)
	}
}

func TestListConversations_ParamClamping(t *testing.T) {
	fake := &fakeChatService{listItems: []domain.ChatEntry{}}
	r := chatRouter(fake)

	// Nonsense paging falls back to defaults; oversized page_size is capped.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations?page=zero&page_size=-3", nil))
	if w.Code != http.StatusOK || fake.gotPage != 1 || fake.gotPageSize != 1 {
		t.Fatalf("clamped to page=%d size=%d status=%d", fake.gotPage, fake.gotPageSize, w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations?page_size=9999", nil))
	if fake.gotPageSize != 100 {
		t.Fatalf("page_size cap = %d", fake.gotPageSize)
	}
}

func TestGetConversation(t *testing.T) {
	fake := &fakeChatService{
		historyRes: &domain.ChatEntry{
			ID:    "CID1-a",
			Title: "First",
			Day:   "2025-08-28",
			Messages: []domain.Message{
				{Role: domain.RoleUser, Content: "q"},
				{Role: domain.RoleAssistant, Content: "a"},
			},
		},
	}
	r := chatRouter(fake)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations/CID1-a", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ConversationDetail
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ID != "CID1-a" || len(resp.Messages) != 2 {
		t.Fatalf("detail: %+v", resp)
	}
	if fake.gotConversationID != "CID1-a" {
		t.Fatalf("service saw id %q", fake.gotConversationID)
	}
}

func TestGetConversation_NotFound(t *testing.T) {
	r := chatRouter(&fakeChatService{historyErr: services.ErrConversationNotFound})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/conversations/CID0-missing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	var resp ErrorResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Code != ErrCodeConversationNotFound {
		t.Fatalf("code = %q", resp.Code)
	}
}
