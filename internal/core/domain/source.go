package domain

import (
	"strings"
	"time"
)

// SourceType classifies the kind of literature a knowledge source holds
type SourceType string

const (
	SourceTypePsychology    SourceType = "psychology"
	SourceTypeTechnical     SourceType = "technical"
	SourceTypeCommunication SourceType = "communication"
)

// IsValid returns true if this is a known source type
func (t SourceType) IsValid() bool {
	switch t {
	case SourceTypePsychology, SourceTypeTechnical, SourceTypeCommunication:
		return true
	default:
		return false
	}
}

// ParseSourceType normalises a user-supplied source type
func ParseSourceType(s string) (SourceType, bool) {
	t := SourceType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.IsValid()
}

// ProcessingStatus is the ingestion state of a knowledge source
type ProcessingStatus string

const (
	StatusQueued     ProcessingStatus = "queued"
	StatusProcessing ProcessingStatus = "processing"
	StatusProcessed  ProcessingStatus = "processed"
	StatusFailed     ProcessingStatus = "failed"
)

// CanTransitionTo reports whether the ingestion state machine allows moving
// from s to next. A settled source (processed or failed) may be queued again.
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing || next == StatusQueued
	case StatusProcessing:
		return next == StatusProcessed || next == StatusFailed
	case StatusProcessed, StatusFailed:
		return next == StatusQueued
	default:
		return next == StatusQueued
	}
}

// IsSettled returns true once ingestion has finished, successfully or not
func (s ProcessingStatus) IsSettled() bool {
	return s == StatusProcessed || s == StatusFailed
}

// KnowledgeSource is a document whose concepts feed retrieval.
// Its concepts become visible to readers only after a successful ingestion.
// Generation names the concept set that run committed; stored concepts of
// any other generation are staged or stale and never shown.
type KnowledgeSource struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Author       string           `json:"author,omitempty"`
	Type         SourceType       `json:"type"`
	Locator      string           `json:"locator,omitempty"` // origin document path or URL
	Status       ProcessingStatus `json:"status"`
	ConceptCount int              `json:"concept_count"`
	Generation   int64            `json:"generation"`
	LastError    string           `json:"last_error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
}

// NewKnowledgeSource creates a queued source
func NewKnowledgeSource(id, title, author string, sourceType SourceType, locator string) *KnowledgeSource {
	now := time.Now()
	if id == "" {
		id = GenerateID()
	}
	return &KnowledgeSource{
		ID:        id,
		Title:     title,
		Author:    author,
		Type:      sourceType,
		Locator:   locator,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// MarkQueued resets the source for another ingestion run
func (s *KnowledgeSource) MarkQueued() {
	s.Status = StatusQueued
	s.LastError = ""
	s.UpdatedAt = time.Now()
}

// MarkProcessing records the start of an ingestion run
func (s *KnowledgeSource) MarkProcessing() {
	s.Status = StatusProcessing
	s.UpdatedAt = time.Now()
}

// MarkProcessed records a successful ingestion
func (s *KnowledgeSource) MarkProcessed(conceptCount int) {
	now := time.Now()
	s.Status = StatusProcessed
	s.ConceptCount = conceptCount
	s.LastError = ""
	s.UpdatedAt = now
	s.ProcessedAt = &now
}

// NextGeneration returns a generation above the committed one that is also
// unique to the calling run, so rows left behind by an abandoned run can
// never be mistaken for a later run's set.
func (s *KnowledgeSource) NextGeneration() int64 {
	return max(s.Generation+1, time.Now().UnixNano())
}

// MarkFailed records a failed ingestion. ConceptCount keeps describing the
// concept set that is still current from an earlier run.
func (s *KnowledgeSource) MarkFailed(err string) {
	s.Status = StatusFailed
	s.LastError = err
	s.UpdatedAt = time.Now()
}

// SourceDocument is the normalised plain text of a source awaiting ingestion
type SourceDocument struct {
	SourceID  string    `json:"source_id"`
	Text      string    `json:"text"`
	UpdatedAt time.Time `json:"updated_at"`
}
