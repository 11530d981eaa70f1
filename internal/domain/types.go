package domain

import (
	"slices"
	"time"
)

// Ticket statuses
const (
	StatusOpen       = "open"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
)

// Ticket priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Message author roles
const (
	RoleCustomer = "customer"
	RoleAgent    = "agent"
)

// Statuses lists the valid ticket statuses in workflow order
var Statuses = []string{StatusOpen, StatusInProgress, StatusResolved}

// Priorities lists the valid ticket priorities from lowest to highest
var Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}

// Ticket represents a support request raised by a customer
type Ticket struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       string       `json:"status"`
	Priority     string       `json:"priority"`
	Assignee     string       `json:"assignee,omitempty"`
	Customer     string       `json:"customer,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Conversation []Message    `json:"conversation,omitempty"`
	AuditLog     []AuditEntry `json:"audit_log,omitempty"`
}

// RecordID returns the ticket's identifier
func (t Ticket) RecordID() int64 { return t.ID }

// SearchFields returns the fields a free-text query is matched against
func (t Ticket) SearchFields() []string {
	return []string{t.Title, t.Description, t.Status}
}

// Clone returns a copy that shares no slices with t
func (t Ticket) Clone() Ticket {
	t.Conversation = slices.Clone(t.Conversation)
	t.AuditLog = slices.Clone(t.AuditLog)
	return t
}

// Article represents a knowledge-base entry
type Article struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Views     int       `json:"views"`
}

// RecordID returns the article's identifier
func (a Article) RecordID() int64 { return a.ID }

// SearchFields returns the fields a free-text query is matched against.
// Each tag is a field of its own.
func (a Article) SearchFields() []string {
	fields := make([]string, 0, 3+len(a.Tags))
	fields = append(fields, a.Title, a.Content, a.Category)
	return append(fields, a.Tags...)
}

// Clone returns a copy that shares no slices with a
func (a Article) Clone() Article {
	a.Tags = slices.Clone(a.Tags)
	return a
}

// Message is one entry of a ticket conversation
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Role      string    `json:"role"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AuditEntry records an action taken on a ticket
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

// Suggestion is a knowledge-base article proposed for a ticket
type Suggestion struct {
	ArticleID int64   `json:"article_id"`
	Title     string  `json:"title"`
	Excerpt   string  `json:"excerpt"`
	Relevance int     `json:"relevance"`
	Score     float64 `json:"-"`
}
