package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docwell/internal/chunker"
	"docwell/internal/index"
	"docwell/internal/model"
)

const (
	defaultChunkSize       = 500
	defaultChunkOverlap    = 100
	defaultTopK            = 5
	defaultThreshold       = 0.3
	defaultMaxContextChars = 2000
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrGenerationUnavailable means the external generation service failed or
	// timed out. The service never synthesizes an answer itself.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)

// GenerationRequest carries the assembled prompt material to the external
// generation collaborator. Context may be empty.
type GenerationRequest struct {
	Query    string
	Context  string
	Language string
}

// Generator is the external answer-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// RAGSettings tunes chunking and retrieval. Zero values take the documented
// defaults above.
type RAGSettings struct {
	ChunkSize       int
	ChunkOverlap    int
	TopK            int
	Threshold       float64
	MaxContextChars int
}

func (s RAGSettings) withDefaults() RAGSettings {
	if s.ChunkSize <= 0 {
		s.ChunkSize = defaultChunkSize
	}
	if s.ChunkOverlap < 0 {
		s.ChunkOverlap = defaultChunkOverlap
	}
	if s.TopK <= 0 {
		s.TopK = defaultTopK
	}
	if s.Threshold == 0 {
		s.Threshold = defaultThreshold
	}
	if s.MaxContextChars <= 0 {
		s.MaxContextChars = defaultMaxContextChars
	}
	return s
}

// AssistantService bridges the chunker and the embedding index with the
// external generator. It holds no document state of its own.
type AssistantService struct {
	idx       *index.Index
	generator Generator
	settings  RAGSettings
}

func NewAssistantService(idx *index.Index, generator Generator, settings RAGSettings) *AssistantService {
	return &AssistantService{
		idx:       idx,
		generator: generator,
		settings:  settings.withDefaults(),
	}
}

// IngestInput is one document to chunk, embed and store.
type IngestInput struct {
	OwnerID   string
	Name      string
	Text      string
	Title     string
	Author    string
	Pages     int
	SizeBytes int64
}

// Ingest chunks the text, extracts structured fields from its head, and stores
// the document atomically in the index. A document with no extractable text is
// still recorded, with an empty chunk sequence.
func (s *AssistantService) Ingest(ctx context.Context, input IngestInput) (*model.Document, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, ErrInvalidInput
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Untitled"
	}

	doc := model.Document{
		ID:         newDocumentID(),
		OwnerID:    input.OwnerID,
		Name:       name,
		Title:      strings.TrimSpace(input.Title),
		Author:     strings.TrimSpace(input.Author),
		Pages:      input.Pages,
		SizeBytes:  input.SizeBytes,
		Fields:     chunker.ExtractFields(input.Text),
		UploadedAt: time.Now(),
	}

	passages := chunker.Chunk(input.Text, s.settings.ChunkSize, s.settings.ChunkOverlap)
	chunks := make([]model.Chunk, len(passages))
	for i, p := range passages {
		chunks[i] = model.Chunk{
			DocumentID: doc.ID,
			OwnerID:    doc.OwnerID,
			Seq:        p.Index,
			Text:       p.Text,
			Length:     p.Length,
		}
	}

	ids, err := s.idx.AddDocument(ctx, doc, chunks)
	if err != nil {
		return nil, err
	}
	doc.ChunkIDs = ids
	return &doc, nil
}

// AskInput is one question against an owner's documents. Zero-valued options
// take the service defaults.
type AskInput struct {
	OwnerID        string
	Query          string
	TopK           int
	Threshold      float64
	Language       string
	IncludeSources bool
}

// Citation names one passage that made it into the context block.
type Citation struct {
	DocumentID string  `json:"document_id"`
	ChunkID    uint64  `json:"chunk_id"`
	Seq        int     `json:"seq"`
	Score      float64 `json:"score"`
}

// Answer is the generation outcome. ContextUsed is false when the question was
// answered without any of the owner's passages (the degrade-gracefully path).
type Answer struct {
	Text        string     `json:"text"`
	Citations   []Citation `json:"citations,omitempty"`
	SourcesUsed int        `json:"sources_used"`
	ContextUsed bool       `json:"context_used"`
}

// Ask retrieves the owner's most relevant passages, assembles them into a
// bounded context block, and forwards everything to the generator. Zero
// passages above threshold still produce a generator call with empty context;
// a generator failure surfaces as ErrGenerationUnavailable.
func (s *AssistantService) Ask(ctx context.Context, input AskInput) (*Answer, error) {
	if strings.TrimSpace(input.OwnerID) == "" || strings.TrimSpace(input.Query) == "" {
		return nil, ErrInvalidInput
	}
	topK := input.TopK
	if topK <= 0 {
		topK = s.settings.TopK
	}
	threshold := input.Threshold
	if threshold == 0 {
		threshold = s.settings.Threshold
	}

	retrieved, err := s.idx.RetrieveContext(ctx, input.Query, input.OwnerID, index.QueryOptions{
		TopK:      topK,
		Threshold: threshold,
	})
	if err != nil {
		return nil, err
	}

	contextBlock, used := s.buildContext(retrieved.Results)

	text, err := s.generator.Generate(ctx, GenerationRequest{
		Query:    input.Query,
		Context:  contextBlock,
		Language: input.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	answer := &Answer{
		Text:        strings.TrimSpace(text),
		SourcesUsed: len(used),
		ContextUsed: len(used) > 0,
	}
	if input.IncludeSources {
		for _, r := range used {
			answer.Citations = append(answer.Citations, Citation{
				DocumentID: r.Chunk.DocumentID,
				ChunkID:    r.Chunk.ID,
				Seq:        r.Chunk.Seq,
				Score:      r.Score,
			})
		}
	}
	return answer, nil
}

const contextSeparator = "\n---\n"

// buildContext concatenates ranked passages until the character budget runs
// out; lower-ranked passages past the budget are dropped. The top-ranked
// passage always contributes: when it alone exceeds the budget it is truncated
// to fit rather than dropped, so relevant material is never silently discarded.
func (s *AssistantService) buildContext(results []model.ScoredChunk) (string, []model.ScoredChunk) {
	var b strings.Builder
	var used []model.ScoredChunk
	total := 0
	for _, r := range results {
		cost := r.Chunk.Length
		if len(used) > 0 {
			cost += len(contextSeparator)
		}
		if total+cost > s.settings.MaxContextChars {
			if len(used) > 0 {
				break
			}
			b.WriteString(truncateRunes(r.Chunk.Text, s.settings.MaxContextChars))
			used = append(used, r)
			break
		}
		if len(used) > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(r.Chunk.Text)
		total += cost
		used = append(used, r)
	}
	return b.String(), used
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ListDocuments returns the owner's documents, most recent first.
func (s *AssistantService) ListDocuments(ownerID string, limit int) ([]model.Document, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, ErrInvalidInput
	}
	return s.idx.UserDocuments(ownerID, limit), nil
}

// DeleteDocument removes a document the owner holds. False means not found or
// owned by someone else.
func (s *AssistantService) DeleteDocument(documentID, ownerID string) (bool, error) {
	if strings.TrimSpace(ownerID) == "" || strings.TrimSpace(documentID) == "" {
		return false, ErrInvalidInput
	}
	return s.idx.DeleteDocument(documentID, ownerID), nil
}

// Health reports index status.
func (s *AssistantService) Health() index.Status {
	return s.idx.Health()
}

func newDocumentID() string {
	return "doc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
