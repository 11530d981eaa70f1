package filter

import "github.com/pbaille/helpdesk/internal/domain"

// Status selects tickets in the given status
func Status(status string) Predicate[domain.Ticket] {
	return Field(status, func(t domain.Ticket) string { return t.Status })
}

// Priority selects tickets with the given priority
func Priority(priority string) Predicate[domain.Ticket] {
	return Field(priority, func(t domain.Ticket) string { return t.Priority })
}

// Category selects articles in the given category
func Category(category string) Predicate[domain.Article] {
	return Field(category, func(a domain.Article) string { return a.Category })
}
