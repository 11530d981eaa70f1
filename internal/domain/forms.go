package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TicketForm holds the editable fields of a ticket as entered by an agent
type TicketForm struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Assignee    string `json:"assignee"`
	Customer    string `json:"customer"`
}

// ArticleForm holds the editable fields of an article. Tags are kept as
// the comma-separated string shown in the editor.
type ArticleForm struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Tags     string `json:"tags"`
}

// NormalizeTags splits a comma-separated tag string, trims every tag and
// drops the empty ones. Order is kept.
func NormalizeTags(s string) []string {
	tags := []string{}
	for _, part := range strings.Split(s, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// JoinTags renders tags as the editor's display string
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

// StatusLabel turns a status like "in-progress" into "In Progress"
func StatusLabel(status string) string {
	words := strings.Split(status, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// TicketKind binds tickets to the generic store and editor. Agent is the
// user recorded in the audit log for edits; DefaultPriority fills new
// tickets created without one.
type TicketKind struct {
	Agent           string
	DefaultPriority string
}

// Name returns the kind name used in errors and storage keys
func (TicketKind) Name() string { return "ticket" }

// New builds a ticket from a validated form
func (k TicketKind) New(id int64, f TicketForm, now time.Time) Ticket {
	t := Ticket{
		ID:          id,
		Title:       f.Title,
		Description: f.Description,
		Status:      orDefault(f.Status, StatusOpen),
		Priority:    orDefault(f.Priority, orDefault(k.DefaultPriority, PriorityMedium)),
		Assignee:    f.Assignee,
		Customer:    f.Customer,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.AuditLog = append(t.AuditLog, auditEntry("Ticket created", orDefault(f.Customer, k.agent()), now))
	if t.Assignee != "" {
		t.AuditLog = append(t.AuditLog, auditEntry("Assigned to "+t.Assignee, "System", now))
	}
	return t
}

// Merge applies the form over an existing ticket. A blank status or
// priority keeps the current value. Status and assignee changes are
// written to the audit log.
func (k TicketKind) Merge(t Ticket, f TicketForm, now time.Time) Ticket {
	t = t.Clone()

	status := orDefault(f.Status, t.Status)
	if status != t.Status {
		t.AuditLog = append(t.AuditLog, auditEntry("Status changed to "+StatusLabel(status), k.agent(), now))
	}
	if f.Assignee != "" && f.Assignee != t.Assignee {
		t.AuditLog = append(t.AuditLog, auditEntry("Assigned to "+f.Assignee, k.agent(), now))
	}

	t.Title = f.Title
	t.Description = f.Description
	t.Status = status
	t.Priority = orDefault(f.Priority, t.Priority)
	t.Assignee = f.Assignee
	t.Customer = f.Customer
	t.UpdatedAt = later(now, t.CreatedAt)
	return t
}

// Touch refreshes the update time after a content edit
func (TicketKind) Touch(t Ticket, now time.Time) Ticket {
	t.UpdatedAt = later(now, t.CreatedAt)
	return t
}

// Viewed reports that tickets carry no view counter
func (TicketKind) Viewed(t Ticket) (Ticket, bool) { return t, false }

// Blank returns the empty form used when creating a ticket
func (TicketKind) Blank() TicketForm { return TicketForm{} }

// Form copies a ticket's editable fields
func (TicketKind) Form(t Ticket) TicketForm {
	return TicketForm{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Assignee:    t.Assignee,
		Customer:    t.Customer,
	}
}

// Validate checks required fields and enumerations
func (TicketKind) Validate(f TicketForm) error {
	var v validator
	v.required("title", f.Title)
	v.required("description", f.Description)
	v.oneOf("status", f.Status, Statuses)
	v.oneOf("priority", f.Priority, Priorities)
	return v.err()
}

func (k TicketKind) agent() string {
	return orDefault(k.Agent, "System")
}

// ArticleKind binds articles to the generic store and editor
type ArticleKind struct{}

// Name returns the kind name used in errors and storage keys
func (ArticleKind) Name() string { return "article" }

// New builds an article from a validated form with a zero view count
func (ArticleKind) New(id int64, f ArticleForm, now time.Time) Article {
	return Article{
		ID:        id,
		Title:     f.Title,
		Content:   f.Content,
		Category:  f.Category,
		Tags:      NormalizeTags(f.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Merge applies the form, keeping id, creation time and views
func (ArticleKind) Merge(a Article, f ArticleForm, now time.Time) Article {
	a.Title = f.Title
	a.Content = f.Content
	a.Category = f.Category
	a.Tags = NormalizeTags(f.Tags)
	a.UpdatedAt = later(now, a.CreatedAt)
	return a
}

// Touch refreshes the update time after a content edit
func (ArticleKind) Touch(a Article, now time.Time) Article {
	a.UpdatedAt = later(now, a.CreatedAt)
	return a
}

// Viewed counts one more view. The update time is left alone.
func (ArticleKind) Viewed(a Article) (Article, bool) {
	a.Views++
	return a, true
}

// Blank returns the empty form used when creating an article
func (ArticleKind) Blank() ArticleForm { return ArticleForm{} }

// Form copies an article's editable fields
func (ArticleKind) Form(a Article) ArticleForm {
	return ArticleForm{
		Title:    a.Title,
		Content:  a.Content,
		Category: a.Category,
		Tags:     JoinTags(a.Tags),
	}
}

// Validate checks the required fields
func (ArticleKind) Validate(f ArticleForm) error {
	var v validator
	v.required("title", f.Title)
	v.required("category", f.Category)
	v.required("content", f.Content)
	return v.err()
}

func auditEntry(action, user string, at time.Time) AuditEntry {
	return AuditEntry{
		ID:        uuid.New().String(),
		Action:    action,
		User:      user,
		Timestamp: at,
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// later keeps updatedAt from going behind createdAt on clock skew
func later(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
