package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"docwell/internal/model"
)

const defaultTopK = 5

var (
	// ErrEmbeddingFailure wraps any error from the external embedding function.
	// An ingest that hits it leaves nothing behind in the index.
	ErrEmbeddingFailure = errors.New("embedding failed")
	// ErrDimensionMismatch means a vector's dimensionality differs from the one
	// fixed by the first successful embedding call. Configuration-level, never
	// retried.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder produces a fixed-dimension vector for a text. Implementations are
// expected to block on network I/O and honor the context deadline.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QueryOptions bounds a similarity query. TopK <= 0 falls back to 5;
// a zero Threshold admits every non-negative score.
type QueryOptions struct {
	TopK      int
	Threshold float64
}

// Status reports whether the index is operational.
type Status struct {
	Initialized bool `json:"initialized"`
	Documents   int  `json:"documents"`
	Chunks      int  `json:"chunks"`
	Dimension   int  `json:"dimension"`
}

type storedChunk struct {
	chunk  model.Chunk
	docSeq uint64
}

type docEntry struct {
	doc      model.Document
	seq      uint64
	chunkIDs []uint64
}

// shard holds everything one owner has stored. Queries for an owner only ever
// touch that owner's shard, which makes isolation structural.
type shard struct {
	docs   map[string]*docEntry
	order  []string // document ids, oldest first
	chunks map[uint64]*storedChunk
}

// Index is an in-memory vector store scoped per owner. Embedding calls run
// outside the lock; a document becomes visible atomically or not at all.
type Index struct {
	embedder Embedder

	mu          sync.RWMutex
	shards      map[string]*shard
	dim         int
	nextChunkID uint64
	nextDocSeq  uint64
}

func New(embedder Embedder) *Index {
	return &Index{
		embedder: embedder,
		shards:   make(map[string]*shard),
	}
}

// AddDocument embeds every chunk and stores the document with its chunks as a
// single atomic insert. Returned ids follow the input chunk order. On any
// embedding error nothing is stored.
func (ix *Index) AddDocument(ctx context.Context, doc model.Document, chunks []model.Chunk) ([]uint64, error) {
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		vec, err := ix.embedder.Embed(ctx, c.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk %d of %s: %v", ErrEmbeddingFailure, c.Seq, doc.ID, err)
		}
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: chunk %d of %s: empty vector", ErrEmbeddingFailure, c.Seq, doc.ID)
		}
		vectors[i] = vec
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, vec := range vectors {
		if ix.dim == 0 {
			ix.dim = len(vec)
		} else if len(vec) != ix.dim {
			return nil, fmt.Errorf("%w: got %d, index uses %d", ErrDimensionMismatch, len(vec), ix.dim)
		}
	}

	sh := ix.shards[doc.OwnerID]
	if sh == nil {
		sh = &shard{
			docs:   make(map[string]*docEntry),
			chunks: make(map[uint64]*storedChunk),
		}
		ix.shards[doc.OwnerID] = sh
	}

	ix.nextDocSeq++
	entry := &docEntry{doc: doc, seq: ix.nextDocSeq}

	ids := make([]uint64, len(chunks))
	for i, c := range chunks {
		ix.nextChunkID++
		c.ID = ix.nextChunkID
		c.DocumentID = doc.ID
		c.OwnerID = doc.OwnerID
		c.Embedding = vectors[i]
		sh.chunks[c.ID] = &storedChunk{chunk: c, docSeq: entry.seq}
		ids[i] = c.ID
	}
	entry.chunkIDs = ids
	entry.doc.ChunkIDs = ids
	sh.docs[doc.ID] = entry
	sh.order = append(sh.order, doc.ID)

	return ids, nil
}

// RetrieveContext embeds the query and ranks the owner's chunks by raw cosine
// similarity. An owner with no chunks gets an empty result, not an error.
func (ix *Index) RetrieveContext(ctx context.Context, query, ownerID string, opts QueryOptions) (model.RetrievalResult, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return model.RetrievalResult{}, fmt.Errorf("%w: query: %v", ErrEmbeddingFailure, err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.dim != 0 && len(vec) != ix.dim {
		return model.RetrievalResult{}, fmt.Errorf("%w: got %d, index uses %d", ErrDimensionMismatch, len(vec), ix.dim)
	}

	sh := ix.shards[ownerID]
	if sh == nil {
		return model.RetrievalResult{}, nil
	}

	scored := make([]struct {
		sc    *storedChunk
		score float64
	}, 0, len(sh.chunks))
	for _, sc := range sh.chunks {
		score := cosineSimilarity(vec, sc.chunk.Embedding)
		if score < opts.Threshold {
			continue
		}
		scored = append(scored, struct {
			sc    *storedChunk
			score float64
		}{sc, score})
	}

	// Descending score; ties resolve by document insertion order, then chunk
	// sequence, so an unchanged index always ranks identically.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].sc.docSeq != scored[j].sc.docSeq {
			return scored[i].sc.docSeq < scored[j].sc.docSeq
		}
		return scored[i].sc.chunk.Seq < scored[j].sc.chunk.Seq
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	results := make([]model.ScoredChunk, len(scored))
	for i, s := range scored {
		results[i] = model.ScoredChunk{Chunk: s.sc.chunk, Score: s.score}
	}
	return model.RetrievalResult{Results: results}, nil
}

// DeleteDocument removes the document and all its chunks if it belongs to
// ownerID. A missing or foreign document returns false, which is a normal
// outcome rather than a failure.
func (ix *Index) DeleteDocument(documentID, ownerID string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	sh := ix.shards[ownerID]
	if sh == nil {
		return false
	}
	entry, ok := sh.docs[documentID]
	if !ok {
		return false
	}
	for _, id := range entry.chunkIDs {
		delete(sh.chunks, id)
	}
	delete(sh.docs, documentID)
	for i, id := range sh.order {
		if id == documentID {
			sh.order = append(sh.order[:i], sh.order[i+1:]...)
			break
		}
	}
	return true
}

// UserDocuments lists the owner's documents, most recently uploaded first.
// limit <= 0 means no cap.
func (ix *Index) UserDocuments(ownerID string, limit int) []model.Document {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	sh := ix.shards[ownerID]
	if sh == nil {
		return nil
	}
	docs := make([]model.Document, 0, len(sh.order))
	for i := len(sh.order) - 1; i >= 0; i-- {
		if limit > 0 && len(docs) >= limit {
			break
		}
		docs = append(docs, sh.docs[sh.order[i]].doc)
	}
	return docs
}

// Health reports the index state.
func (ix *Index) Health() Status {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	st := Status{Initialized: ix.embedder != nil, Dimension: ix.dim}
	for _, sh := range ix.shards {
		st.Documents += len(sh.docs)
		st.Chunks += len(sh.chunks)
	}
	return st
}

// cosineSimilarity compares raw vectors: dot(a,b) / (|a|*|b|). Accumulation in
// float64 keeps the same vector pair at the same score regardless of call order.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
