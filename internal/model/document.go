package model

import "time"

// DocumentFields holds structured values pulled out of the head of a document
// by the chunker's pattern table. Empty string means the field was not found.
type DocumentFields struct {
	Patient    string `json:"patient,omitempty"`
	Age        string `json:"age,omitempty"`
	Gender     string `json:"gender,omitempty"`
	ReportDate string `json:"report_date,omitempty"`
	Kind       string `json:"kind,omitempty"`
}

// Document is the metadata record for one uploaded document. The chunk ids
// reference chunks owned by the index; they form a contiguous sequence in
// creation order. A document with no extractable text has an empty ChunkIDs.
type Document struct {
	ID         string         `json:"id"`
	OwnerID    string         `json:"owner_id"`
	Name       string         `json:"name"`
	Title      string         `json:"title,omitempty"`
	Author     string         `json:"author,omitempty"`
	Pages      int            `json:"pages"`
	SizeBytes  int64          `json:"size_bytes"`
	Fields     DocumentFields `json:"fields"`
	ChunkIDs   []uint64       `json:"chunk_ids"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

// Chunk is one retrievable passage of a document. Length is the rune count of
// Text. The embedding vector is attached by the index when the chunk is stored.
type Chunk struct {
	ID         uint64    `json:"id"`
	DocumentID string    `json:"document_id"`
	OwnerID    string    `json:"owner_id"`
	Seq        int       `json:"seq"`
	Text       string    `json:"text"`
	Length     int       `json:"length"`
	Embedding  []float32 `json:"-"`
}

// ScoredChunk pairs a stored chunk with its cosine similarity to a query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult is the ordered outcome of a similarity query: descending by
// score, at most top-k entries, every score at or above the requested threshold.
type RetrievalResult struct {
	Results []ScoredChunk `json:"results"`
}
