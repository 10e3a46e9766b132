package model

import "time"

// Document represents an uploaded policy or technical-evidence document.
// The raw bytes live in external storage; the pipeline only ever sees the
// extracted text.
type Document struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Status       DocumentStatus `json:"status"`
	ControlScope string         `json:"control_scope,omitempty"` // Optional control family/id tag
	AssessmentID string         `json:"assessment_id,omitempty"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	Error        string         `json:"error,omitempty"` // Populated when Status is failed
}

// DocumentStatus tracks a document through the ingestion pipeline.
// A document is immutable once it reaches StatusEmbedded.
type DocumentStatus string

const (
	StatusUploaded  DocumentStatus = "uploaded"
	StatusExtracted DocumentStatus = "extracted"
	StatusChunked   DocumentStatus = "chunked"
	StatusEmbedded  DocumentStatus = "embedded"
	StatusFailed    DocumentStatus = "failed"
)

// Chunk is a bounded span of a document's text, the unit of embedding and
// retrieval. Consecutive chunks of one document overlap by a constant,
// configuration-determined amount.
type Chunk struct {
	ID         string           `json:"id"`
	DocumentID string           `json:"document_id"`
	Index      int              `json:"index"`                 // Position within the document (0-based)
	Text       string           `json:"text"`
	Start      int              `json:"start"`                 // Byte offset of the span in the source text
	End        int              `json:"end"`
	Embedding  []float32        `json:"embedding,omitempty"`   // Absent until the embedding provider succeeds
	ControlIDs []string         `json:"control_ids,omitempty"` // Control identifiers detected in the text
	Method     AssessmentMethod `json:"method,omitempty"`      // Assessment-method tag, if detected
}

// AssessmentMethod classifies how evidence in a chunk was gathered.
type AssessmentMethod string

const (
	MethodExamine   AssessmentMethod = "examine"
	MethodInterview AssessmentMethod = "interview"
	MethodTest      AssessmentMethod = "test"
)
