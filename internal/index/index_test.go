package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docwell/internal/model"
)

// stubEmbedder returns a fixed vector per exact text, so similarity scores in
// tests can be reasoned about in 2-3 dimensions.
type stubEmbedder struct {
	vecs     map[string][]float32
	fallback []float32
	failOn   string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if s.failOn != "" && text == s.failOn {
		return nil, errors.New("boom")
	}
	if v, ok := s.vecs[text]; ok {
		return v, nil
	}
	return s.fallback, nil
}

func newChunk(docID, ownerID string, seq int, text string) model.Chunk {
	return model.Chunk{DocumentID: docID, OwnerID: ownerID, Seq: seq, Text: text, Length: len(text)}
}

func mustAdd(t *testing.T, ix *Index, docID, ownerID string, texts ...string) []uint64 {
	t.Helper()
	doc := model.Document{ID: docID, OwnerID: ownerID, Name: docID}
	chunks := make([]model.Chunk, len(texts))
	for i, txt := range texts {
		chunks[i] = newChunk(docID, ownerID, i, txt)
	}
	ids, err := ix.AddDocument(context.Background(), doc, chunks)
	require.NoError(t, err)
	return ids
}

func TestAddDocument_AssignsIDsInOrder(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}})
	ids := mustAdd(t, ix, "d1", "u1", "alpha", "beta", "gamma")

	require.Len(t, ids, 3)
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])

	st := ix.Health()
	assert.True(t, st.Initialized)
	assert.Equal(t, 1, st.Documents)
	assert.Equal(t, 3, st.Chunks)
	assert.Equal(t, 2, st.Dimension)
}

func TestAddDocument_ZeroChunks(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}})
	ids := mustAdd(t, ix, "d-empty", "u1")
	assert.Empty(t, ids)

	docs := ix.UserDocuments("u1", 0)
	require.Len(t, docs, 1)
	assert.Equal(t, "d-empty", docs[0].ID)
	assert.Empty(t, docs[0].ChunkIDs)
}

func TestAddDocument_EmbeddingFailureRollsBack(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}, failOn: "beta"})

	doc := model.Document{ID: "d1", OwnerID: "u1"}
	chunks := []model.Chunk{
		newChunk("d1", "u1", 0, "alpha"),
		newChunk("d1", "u1", 1, "beta"),
	}
	_, err := ix.AddDocument(context.Background(), doc, chunks)
	require.ErrorIs(t, err, ErrEmbeddingFailure)

	st := ix.Health()
	assert.Zero(t, st.Documents)
	assert.Zero(t, st.Chunks)
	assert.Empty(t, ix.UserDocuments("u1", 0))
}

func TestAddDocument_DimensionMismatch(t *testing.T) {
	emb := &stubEmbedder{
		vecs:     map[string][]float32{"short": {1, 0, 0}},
		fallback: []float32{1, 0},
	}
	ix := New(emb)
	mustAdd(t, ix, "d1", "u1", "short") // fixes dimension at 3

	doc := model.Document{ID: "d2", OwnerID: "u1"}
	_, err := ix.AddDocument(context.Background(), doc, []model.Chunk{newChunk("d2", "u1", 0, "other")})
	require.ErrorIs(t, err, ErrDimensionMismatch)

	// Nothing from the failed call may be visible.
	st := ix.Health()
	assert.Equal(t, 1, st.Documents)
	assert.Equal(t, 1, st.Chunks)
}

func TestRetrieveContext_OwnerIsolation(t *testing.T) {
	emb := &stubEmbedder{
		vecs: map[string][]float32{
			"query": {1, 0},
			// u2's chunks score higher than u1's, and must still never appear.
			"u2 hot a": {1, 0},
			"u2 hot b": {1, 0},
			"u1 a":     {0.9, 0.1},
			"u1 b":     {0.5, 0.5},
			"u1 c":     {0.1, 0.9},
		},
		fallback: []float32{0, 1},
	}
	ix := New(emb)
	mustAdd(t, ix, "d1", "u1", "u1 a", "u1 b", "u1 c")
	mustAdd(t, ix, "d2", "u2", "u2 hot a", "u2 hot b")

	res, err := ix.RetrieveContext(context.Background(), "query", "u1", QueryOptions{TopK: 10, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
	for _, r := range res.Results {
		assert.Equal(t, "u1", r.Chunk.OwnerID)
		assert.Equal(t, "d1", r.Chunk.DocumentID)
	}
}

func TestRetrieveContext_TopKAndThreshold(t *testing.T) {
	emb := &stubEmbedder{
		vecs: map[string][]float32{
			"query": {1, 0},
			"best":  {1, 0},       // score 1.0
			"good":  {1, 1},       // score ~0.707
			"weak":  {0.1, 0.995}, // score ~0.1
			"anti":  {-1, 0},      // score -1.0
		},
	}
	ix := New(emb)
	mustAdd(t, ix, "d1", "u1", "best", "good", "weak", "anti")

	res, err := ix.RetrieveContext(context.Background(), "query", "u1", QueryOptions{TopK: 10, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "best", res.Results[0].Chunk.Text)
	assert.Equal(t, "good", res.Results[1].Chunk.Text)
	for _, r := range res.Results {
		assert.GreaterOrEqual(t, r.Score, 0.5)
	}

	res, err = ix.RetrieveContext(context.Background(), "query", "u1", QueryOptions{TopK: 1, Threshold: 0.5})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "best", res.Results[0].Chunk.Text)

	// Threshold zero still excludes negative scores.
	res, err = ix.RetrieveContext(context.Background(), "query", "u1", QueryOptions{TopK: 10, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, res.Results, 3)
}

func TestRetrieveContext_DeterministicTieBreak(t *testing.T) {
	same := []float32{1, 0}
	emb := &stubEmbedder{
		vecs:     map[string][]float32{"query": {1, 0}},
		fallback: same,
	}
	ix := New(emb)
	mustAdd(t, ix, "d1", "u1", "c0", "c1")
	mustAdd(t, ix, "d2", "u1", "c2")

	first, err := ix.RetrieveContext(context.Background(), "query", "u1", QueryOptions{TopK: 10, Threshold: 0})
	require.NoError(t, err)
	require.Len(t, first.Results, 3)

	// All scores tie at 1.0: earlier document first, then chunk sequence.
	assert.Equal(t, "c0", first.Results[0].Chunk.Text)
	assert.Equal(t, "c1", first.Results[1].Chunk.Text)
	assert.Equal(t, "c2", first.Results[2].Chunk.Text)

	for i := 0; i < 5; i++ {
		again, err := ix.RetrieveContext(context.Background(), "query", "u1", QueryOptions{TopK: 10, Threshold: 0})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRetrieveContext_UnknownOwnerEmpty(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}})
	mustAdd(t, ix, "d1", "u1", "something")

	res, err := ix.RetrieveContext(context.Background(), "query", "nobody", QueryOptions{TopK: 5, Threshold: 0})
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestRetrieveContext_QueryEmbeddingFailure(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}, failOn: "query"})
	mustAdd(t, ix, "d1", "u1", "something")

	_, err := ix.RetrieveContext(context.Background(), "query", "u1", QueryOptions{TopK: 5, Threshold: 0})
	require.ErrorIs(t, err, ErrEmbeddingFailure)
}

func TestDeleteDocument(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}})
	mustAdd(t, ix, "d1", "u1", "a", "b")
	mustAdd(t, ix, "d2", "u1", "c")

	// Foreign owner cannot delete.
	assert.False(t, ix.DeleteDocument("d1", "u2"))
	assert.True(t, ix.DeleteDocument("d1", "u1"))
	assert.False(t, ix.DeleteDocument("d1", "u1"), "second delete is a miss")

	res, err := ix.RetrieveContext(context.Background(), "q", "u1", QueryOptions{TopK: 10, Threshold: 0})
	require.NoError(t, err)
	for _, r := range res.Results {
		assert.NotEqual(t, "d1", r.Chunk.DocumentID)
	}

	docs := ix.UserDocuments("u1", 0)
	require.Len(t, docs, 1)
	assert.Equal(t, "d2", docs[0].ID)

	st := ix.Health()
	assert.Equal(t, 1, st.Documents)
	assert.Equal(t, 1, st.Chunks)
}

func TestUserDocuments_RecentFirstAndLimit(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}})
	mustAdd(t, ix, "d1", "u1", "a")
	mustAdd(t, ix, "d2", "u1", "b")
	mustAdd(t, ix, "d3", "u1", "c")

	docs := ix.UserDocuments("u1", 0)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"d3", "d2", "d1"}, []string{docs[0].ID, docs[1].ID, docs[2].ID})

	docs = ix.UserDocuments("u1", 2)
	require.Len(t, docs, 2)
	assert.Equal(t, "d3", docs[0].ID)
	assert.Equal(t, "d2", docs[1].ID)
}

// Writers and readers run in parallel across two owners. Every document
// carries exactly three chunks, so a reader observing a document with fewer
// than three would prove a write became visible mid-insert.
func TestIndex_ConcurrentOwners(t *testing.T) {
	ix := New(&stubEmbedder{fallback: []float32{1, 0}})

	const docsPerOwner = 16
	const chunksPerDoc = 3

	var wg sync.WaitGroup
	for _, owner := range []string{"u1", "u2"} {
		owner := owner

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < docsPerOwner; i++ {
				docID := fmt.Sprintf("%s-d%d", owner, i)
				doc := model.Document{ID: docID, OwnerID: owner}
				chunks := make([]model.Chunk, chunksPerDoc)
				for j := range chunks {
					chunks[j] = newChunk(docID, owner, j, fmt.Sprintf("%s chunk %d", docID, j))
				}
				_, err := ix.AddDocument(context.Background(), doc, chunks)
				assert.NoError(t, err)
				if i%4 == 0 {
					assert.True(t, ix.DeleteDocument(docID, owner))
				}
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				res, err := ix.RetrieveContext(context.Background(), "query", owner, QueryOptions{TopK: 1000, Threshold: 0})
				if !assert.NoError(t, err) {
					return
				}
				perDoc := make(map[string]int)
				for _, r := range res.Results {
					assert.Equal(t, owner, r.Chunk.OwnerID)
					perDoc[r.Chunk.DocumentID]++
				}
				for id, n := range perDoc {
					assert.Equalf(t, chunksPerDoc, n, "document %s visible with a partial chunk set", id)
				}
			}
		}()
	}
	wg.Wait()

	st := ix.Health()
	assert.Equal(t, 2*(docsPerOwner-docsPerOwner/4), st.Documents)
	assert.Equal(t, chunksPerDoc*st.Documents, st.Chunks)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Zero(t, cosineSimilarity(nil, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{0, 0}))
}
