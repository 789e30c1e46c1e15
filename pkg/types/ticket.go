package types

import (
	"fmt"
	"strings"
)

// Default values applied to tickets that omit them
const (
	DefaultStatus   = "Open"
	DefaultPriority = "Medium"
)

// Metadata keys stored alongside each vector
const (
	MetaTitle    = "title"
	MetaContent  = "content"
	MetaStatus   = "status"
	MetaPriority = "priority"
	MetaTags     = "tags"
)

// Ticket represents a support ticket
type Ticket struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Status   string   `json:"status"`
	Priority string   `json:"priority"`
	Tags     []string `json:"tags"`

	// Filled in by search only
	SimilarityScore *float64 `json:"similarity_score"`
}

// Validate checks the fields required for ingestion
func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrMissingID
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: ticket %s", ErrMissingTitle, t.ID)
	}
	return nil
}

// ApplyDefaults fills status, priority and tags when they are empty
func (t *Ticket) ApplyDefaults() {
	if t.Status == "" {
		t.Status = DefaultStatus
	}
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
}

// EmbeddingText returns the text that represents the ticket in vector space
func (t *Ticket) EmbeddingText() string {
	return t.Title + " " + t.Content
}

// Metadata returns the snapshot stored with the ticket's vector
func (t *Ticket) Metadata() map[string]any {
	tags := make([]string, len(t.Tags))
	copy(tags, t.Tags)

	return map[string]any{
		MetaTitle:    t.Title,
		MetaContent:  t.Content,
		MetaStatus:   t.Status,
		MetaPriority: t.Priority,
		MetaTags:     tags,
	}
}

// FromMetadata rebuilds a ticket from an index entry's metadata.
// Missing fields fall back to the ingestion defaults.
func FromMetadata(id string, md map[string]any) Ticket {
	t := Ticket{
		ID:       id,
		Title:    stringField(md, MetaTitle),
		Content:  stringField(md, MetaContent),
		Status:   stringField(md, MetaStatus),
		Priority: stringField(md, MetaPriority),
		Tags:     tagsField(md),
	}
	t.ApplyDefaults()
	return t
}

func stringField(md map[string]any, key string) string {
	if s, ok := md[key].(string); ok {
		return s
	}
	return ""
}

// tagsField accepts []string (in-process) and []any (decoded JSON)
func tagsField(md map[string]any) []string {
	switch v := md[MetaTags].(type) {
	case []string:
		tags := make([]string, len(v))
		copy(tags, v)
		return tags
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return []string{}
	}
}

// WithScore returns a copy of the ticket carrying a similarity score
func (t Ticket) WithScore(score float64) Ticket {
	t.SimilarityScore = &score
	return t
}
