// Package services – ChatService
//
// This file implements the conversation assembler and the session-store
// semantics on top of the ledger repo. It locates or creates a conversation
// for an account, builds the ordered message sequence for the generation
// service (persona seed only when the conversation is new, prior non-system
// turns, then the new user message), and folds the reply back into the
// ledger atomically.
//
// A failed generation call never mutates the ledger: the user turn is only
// persisted together with its assistant reply.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// account and conversation identifiers.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/llm"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
)

// defaultPersona seeds every new conversation. It is stored as the entry's
// leading system message and never replayed back to callers.
const defaultPersona = "You are a Legal AI Assistant specializing in law. " +
	"Assist with legal research, document drafting and review, case analysis, " +
	"and compliance questions. Answer concisely, in a readable format with " +
	"points and spacing where it helps, and stay within the legal domain."

// ChatResult is the outcome of one conversational turn.
type ChatResult struct {
	ConversationID string
	Title          string
	Reply          string
	IsNew          bool
}

// ChatService coordinates conversation lookup, generation, and persistence.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Generator is the external generation collaborator.
	Generator llm.Generator

	// Persona overrides defaultPersona when non-empty.
	Persona string
	// GenTimeout bounds each generation call. <= 0 means 60s.
	GenTimeout time.Duration
	// MaxPromptRunes caps user messages by rune length (0 = unlimited).
	MaxPromptRunes int
	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int

	locks *conversationLocks
}

// NewChatService constructs a ChatService with sane defaults.
func NewChatService(db *gorm.DB, gen llm.Generator) *ChatService {
	return &ChatService{
		DB:             db,
		Generator:      gen,
		GenTimeout:     60 * time.Second,
		MaxPromptRunes: 4000,
		TitleMaxLen:    60,
		locks:          newConversationLocks(),
	}
}

// Converse handles one turn for the account. An empty conversationID (or
// one the caller never had) creates a new conversation filed under today's
// bucket; a supplied id that matches nothing is a hard
// ErrConversationNotFound, never an implicit create.
func (s *ChatService) Converse(ctx context.Context, accountID, conversationID, message string) (*ChatResult, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Converse",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("conversation.id", conversationID),
		),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(message) > s.MaxPromptRunes {
		return nil, ErrMessageTooLong
	}

	if conversationID == "" {
		return s.converseNew(ctx, accountID, message)
	}
	return s.converseExisting(ctx, accountID, conversationID, message)
}

// converseExisting serializes concurrent turns on the same conversation,
// replays its non-system history, and appends the new user/assistant pair
// in one transaction.
func (s *ChatService) converseExisting(ctx context.Context, accountID, conversationID, message string) (*ChatResult, error) {
	release := s.locks.acquire(accountID + "/" + conversationID)
	defer release()

	entry, err := repo.FindEntry(ctx, s.DB, accountID, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	history := make([]llm.Message, 0, len(entry.Messages)+1)
	for _, m := range entry.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}
	history = append(history, llm.Message{Role: domain.RoleUser, Content: message})

	reply, err := s.generate(ctx, history)
	if err != nil {
		return nil, err
	}

	err = repo.AppendMessages(ctx, s.DB, entry.ID, []domain.Message{
		{Role: domain.RoleUser, Content: message},
		{Role: domain.RoleAssistant, Content: reply},
	})
	if err != nil {
		return nil, err
	}

	return &ChatResult{
		ConversationID: entry.ID,
		Title:          entry.Title,
		Reply:          reply,
	}, nil
}

// converseNew seeds a conversation with the persona instruction, generates
// the reply and a title, and inserts the whole entry into today's bucket
// atomically.
func (s *ChatService) converseNew(ctx context.Context, accountID, message string) (*ChatResult, error) {
	seed := []llm.Message{
		{Role: domain.RoleSystem, Content: s.persona()},
		{Role: domain.RoleUser, Content: message},
	}

	reply, err := s.generate(ctx, seed)
	if err != nil {
		return nil, err
	}

	title := s.resolveTitle(ctx, message)
	id := newConversationID()

	release := s.locks.acquire(accountID + "/" + id)
	defer release()

	entry := &domain.ChatEntry{
		ID:        id,
		AccountID: accountID,
		Title:     title,
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: s.persona()},
			{Role: domain.RoleUser, Content: message},
			{Role: domain.RoleAssistant, Content: reply},
		},
	}
	if err := repo.AppendToday(ctx, s.DB, entry); err != nil {
		return nil, err
	}

	return &ChatResult{
		ConversationID: id,
		Title:          title,
		Reply:          reply,
		IsNew:          true,
	}, nil
}

// History locates a conversation in any day bucket and returns it with the
// leading system seed stripped, so callers never see the persona
// instruction as conversation history.
func (s *ChatService) History(ctx context.Context, accountID, conversationID string) (*domain.ChatEntry, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("conversation.id", conversationID),
		),
	)
	defer span.End()

	entry, err := repo.FindEntry(ctx, s.DB, accountID, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}

	visible := make([]domain.Message, 0, len(entry.Messages))
	for _, m := range entry.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}
		visible = append(visible, m)
	}
	entry.Messages = visible
	return entry, nil
}

// ListPage returns a page of the account's ledger entries with the total
// count. It applies defaults for invalid page/pageSize.
func (s *ChatService) ListPage(ctx context.Context, accountID string, page, pageSize int) ([]domain.ChatEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountEntries(ctx, s.DB, accountID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ChatEntry{}, 0, nil
	}

	items, err := repo.ListEntriesPage(ctx, s.DB, accountID, offset, pageSize)
	return items, total, err
}

// generate invokes the external generation service with a bounded timeout.
// Any failure is wrapped as ErrGenerationFailed; callers must not persist
// anything on that path.
func (s *ChatService) generate(ctx context.Context, messages []llm.Message) (string, error) {
	timeout := s.GenTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := s.Generator.Generate(genCtx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return reply, nil
}

// resolveTitle asks the generation service for a title and falls back to a
// locally derived one when that call fails; title generation is cosmetic
// and must not fail the turn.
func (s *ChatService) resolveTitle(ctx context.Context, message string) string {
	timeout := s.GenTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	title, err := s.Generator.GenerateTitle(genCtx, message)
	if err != nil || strings.TrimSpace(title) == "" {
		title = titleFromMessage(message)
	}
	title = normalizeTitle(title)
	if title == "" {
		title = "New conversation"
	}
	return s.clipTitle(title)
}

// clipTitle truncates a title to the configured maximum rune length.
func (s *ChatService) clipTitle(title string) string {
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if utf8.RuneCountInString(title) > max {
		return string([]rune(title)[:max])
	}
	return title
}

func (s *ChatService) persona() string {
	if s.Persona != "" {
		return s.Persona
	}
	return defaultPersona
}

// newConversationID builds a time-derived id in the CID<millis> shape with
// a random suffix so two accounts creating in the same millisecond cannot
// collide.
func newConversationID() string {
	return fmt.Sprintf("CID%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// --- Title fallback helpers ---

// titleWordRE extracts Unicode letters with optional trailing digits.
var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

// titleStopWords is a minimal English stop-word set for compact titles.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
}

// titleFromMessage derives a concise title from the opening message when
// the generation service cannot supply one.
func titleFromMessage(message string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(message), -1)
	if len(toks) == 0 {
		return ""
	}
	caser := cases.Title(language.English)
	out := make([]string, 0, 8)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 8 {
			break
		}
	}
	return strings.Join(out, " ")
}

// normalizeTitle trims whitespace and collapses internal runs to one space.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
