// Package services – DocumentService
//
// This file implements the upload-and-query flow. An uploaded document is
// handed to the extraction collaborator, its text seeded into the TTL
// context cache under a generated id, mirrored into the durable no-TTL
// store, and an initial insight generated. Follow-up questions resolve the
// context by id (cache first, durable store as fallback) and go back to the
// generation service.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-legal-assistant-backend/internal/cache"
	"github.com/tbourn/go-legal-assistant-backend/internal/domain"
	"github.com/tbourn/go-legal-assistant-backend/internal/extract"
	"github.com/tbourn/go-legal-assistant-backend/internal/llm"
	"github.com/tbourn/go-legal-assistant-backend/internal/repo"
)

const documentPersona = "You are an assistant providing insights from uploaded documents."

const queryPersona = "You are an assistant answering questions based on provided document context."

// DocumentAnalysis is the outcome of one upload.
type DocumentAnalysis struct {
	DocumentID string
	Title      string
	Content    string
}

// DocumentService coordinates extraction, context storage, and generation
// for the document flow.
type DocumentService struct {
	// DB is the GORM handle backing the durable variant.
	DB *gorm.DB
	// Cache is the TTL context store.
	Cache *cache.ContextCache
	// Extractor is the document-extraction collaborator.
	Extractor extract.Extractor
	// Generator is the external generation collaborator.
	Generator llm.Generator

	// GenTimeout bounds each generation call. <= 0 means 60s.
	GenTimeout time.Duration
	// TitleMaxLen caps generated titles by rune length.
	TitleMaxLen int
}

// NewDocumentService constructs a DocumentService with sane defaults.
func NewDocumentService(db *gorm.DB, c *cache.ContextCache, ex extract.Extractor, gen llm.Generator) *DocumentService {
	return &DocumentService{
		DB:          db,
		Cache:       c,
		Extractor:   ex,
		Generator:   gen,
		GenTimeout:  60 * time.Second,
		TitleMaxLen: 60,
	}
}

// Analyze extracts text from the uploaded bytes, stores the context (TTL
// cache + durable record), and returns an initial insight with a generated
// title.
func (s *DocumentService) Analyze(ctx context.Context, accountID string, data []byte, mediaType string) (*DocumentAnalysis, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Analyze",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("media.type", mediaType),
		),
	)
	defer span.End()

	text, err := s.Extractor.Extract(ctx, data, mediaType)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedMedia) {
			return nil, ErrUnsupportedMedia
		}
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	title, err := s.generateTitle(ctx, text)
	if err != nil {
		return nil, err
	}

	content, err := s.generate(ctx, []llm.Message{
		{Role: domain.RoleSystem, Content: documentPersona},
		{Role: domain.RoleUser, Content: "Here is some context, I will ask questions from this: " + text},
	})
	if err != nil {
		return nil, err
	}

	documentID := uuid.NewString()
	if err := s.Cache.Put(ctx, documentID, text); err != nil {
		return nil, err
	}
	if _, err := repo.CreateDocument(ctx, s.DB, documentID, accountID, title, text); err != nil {
		return nil, err
	}

	return &DocumentAnalysis{DocumentID: documentID, Title: title, Content: content}, nil
}

// Query answers a question against a previously analyzed document. The TTL
// cache is consulted first; on a miss the durable record backfills the
// context. An id unknown to both is ErrDocumentNotFound.
func (s *DocumentService) Query(ctx context.Context, documentID, question string) (string, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Query",
		trace.WithAttributes(attribute.String("document.id", documentID)),
	)
	defer span.End()

	text, hit, err := s.Cache.Get(ctx, documentID)
	if err != nil {
		return "", err
	}
	if !hit {
		rec, err := repo.GetDocument(ctx, s.DB, documentID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", ErrDocumentNotFound
			}
			return "", err
		}
		text = rec.ExtractedText
		// Re-warm the cache so follow-ups skip the durable store.
		_ = s.Cache.Put(ctx, documentID, text)
	}

	return s.generate(ctx, []llm.Message{
		{Role: domain.RoleSystem, Content: queryPersona},
		{Role: domain.RoleUser, Content: "Context: " + text},
		{Role: domain.RoleUser, Content: "Question: " + question},
	})
}

func (s *DocumentService) generate(ctx context.Context, messages []llm.Message) (string, error) {
	timeout := s.GenTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.Generator.Generate(genCtx, messages)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	return out, nil
}

func (s *DocumentService) generateTitle(ctx context.Context, text string) (string, error) {
	timeout := s.GenTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	title, err := s.Generator.GenerateTitle(genCtx, text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	title = normalizeTitle(title)
	max := s.TitleMaxLen
	if max <= 0 {
		max = 60
	}
	if len([]rune(title)) > max {
		title = string([]rune(title)[:max])
	}
	if title == "" {
		title = "Untitled document"
	}
	return title, nil
}
