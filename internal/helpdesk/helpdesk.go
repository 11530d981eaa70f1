// Package helpdesk wires the ticket and knowledge-base desks to
// persistence and adds the ticket workflows that span both: replies,
// article suggestions and article import.
package helpdesk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pbaille/helpdesk/internal/clock"
	"github.com/pbaille/helpdesk/internal/desk"
	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/pbaille/helpdesk/internal/fetcher"
	"github.com/pbaille/helpdesk/internal/loader"
	"github.com/pbaille/helpdesk/internal/settings"
	"github.com/pbaille/helpdesk/internal/store"
	"github.com/pbaille/helpdesk/internal/suggest"
)

// DefaultSuggestions is the number of articles suggested for a ticket
const DefaultSuggestions = 3

// TicketDesk is the ticket view binder
type TicketDesk = desk.Desk[domain.Ticket, domain.TicketForm]

// ArticleDesk is the knowledge-base view binder
type ArticleDesk = desk.Desk[domain.Article, domain.ArticleForm]

// Store is the persistence a help desk needs
type Store interface {
	loader.RecordReader
	SaveRecords(key string, records any) error
	settings.KV
}

// Fetcher retrieves pages for article import
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetcher.Page, error)
}

// Options configures a Helpdesk
type Options struct {
	Store     Store
	Clock     clock.Clock
	LoadDelay time.Duration
	// Agent is the signed-in support agent.
	Agent   string
	Fetcher Fetcher
	Logger  *slog.Logger
}

// Helpdesk owns the ticket and article desks
type Helpdesk struct {
	Tickets  *TicketDesk
	Articles *ArticleDesk

	store   Store
	clock   clock.Clock
	agent   string
	fetcher Fetcher
	logger  *slog.Logger

	// settingsMu serializes read-modify-write of the settings document
	settingsMu sync.Mutex
}

// New builds a help desk. Its desks are idle until Start.
func New(opts Options) (*Helpdesk, error) {
	if opts.Store == nil {
		return nil, errors.New("helpdesk: store is required")
	}
	h := &Helpdesk{
		store:   opts.Store,
		clock:   opts.Clock,
		agent:   opts.Agent,
		fetcher: opts.Fetcher,
		logger:  opts.Logger,
	}
	if h.clock == nil {
		h.clock = clock.Real()
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	if h.fetcher == nil {
		h.fetcher = fetcher.New()
	}

	prefs, err := settings.Load(opts.Store)
	if err != nil {
		return nil, err
	}

	h.Tickets = desk.New[domain.Ticket, domain.TicketForm](
		domain.TicketKind{Agent: h.agent, DefaultPriority: prefs.System.DefaultPriority},
		desk.Options[domain.Ticket]{
			Clock: h.clock,
			Loader: loader.Snapshot[domain.Ticket]{
				Store: opts.Store,
				Key:   store.KeyTickets,
				Seed:  loader.Fixture(SeedTickets()...),
			},
			Delay:    opts.LoadDelay,
			OnChange: persist[domain.Ticket](h, store.KeyTickets),
			Logger:   h.logger,
		})

	h.Articles = desk.New[domain.Article, domain.ArticleForm](
		domain.ArticleKind{},
		desk.Options[domain.Article]{
			Clock: h.clock,
			Loader: loader.Snapshot[domain.Article]{
				Store: opts.Store,
				Key:   store.KeyArticles,
				Seed:  loader.Fixture(SeedArticles()...),
			},
			Delay:    opts.LoadDelay,
			OnChange: persist[domain.Article](h, store.KeyArticles),
			Logger:   h.logger,
		})

	return h, nil
}

func persist[R any](h *Helpdesk, key string) func([]R) {
	return func(records []R) {
		if err := h.store.SaveRecords(key, records); err != nil {
			h.logger.Error("failed to persist records", "key", key, "error", err)
		}
	}
}

// Start schedules the initial load of both desks
func (h *Helpdesk) Start() {
	h.Tickets.Start()
	h.Articles.Start()
}

// Wait blocks until both desks have loaded
func (h *Helpdesk) Wait(ctx context.Context) error {
	_, terr := h.Tickets.Wait(ctx)
	_, aerr := h.Articles.Wait(ctx)
	return errors.Join(terr, aerr)
}

// Close cancels pending loads
func (h *Helpdesk) Close() {
	h.Tickets.Close()
	h.Articles.Close()
}

// Agent returns the name recorded on replies and edits
func (h *Helpdesk) Agent() string { return h.agent }

// Reply appends an agent message to a ticket's conversation. An empty
// author means the signed-in agent.
func (h *Helpdesk) Reply(id int64, author, body string) (domain.Ticket, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Ticket{}, &domain.ValidationError{Fields: []domain.FieldError{{Field: "message", Message: "is required"}}}
	}
	if author == "" {
		author = h.agent
	}

	now := h.clock.Now()
	t, err := h.Tickets.Modify(id, func(t domain.Ticket) (domain.Ticket, error) {
		t = t.Clone()
		t.Conversation = append(t.Conversation, domain.Message{
			ID:        uuid.New().String(),
			Author:    author,
			Role:      domain.RoleAgent,
			Body:      body,
			Timestamp: now,
		})
		t.AuditLog = append(t.AuditLog, domain.AuditEntry{
			ID:        uuid.New().String(),
			Action:    "Response added",
			User:      author,
			Timestamp: now,
		})
		return t, nil
	})
	if err != nil {
		return domain.Ticket{}, fmt.Errorf("reply: %w", err)
	}
	h.logger.Info("reply added", "ticket", id, "author", author)
	return t, nil
}

// Suggest ranks knowledge-base articles for a ticket. A limit of zero
// or less means DefaultSuggestions.
func (h *Helpdesk) Suggest(id int64, limit int) ([]domain.Suggestion, error) {
	if limit <= 0 {
		limit = DefaultSuggestions
	}
	t, err := h.Tickets.Get(id)
	if err != nil {
		return nil, err
	}
	articles := h.Articles.Snapshot().Records
	return suggest.New(articles).ForTicket(t, limit), nil
}

// Import fetches a web page and saves it as a new article
func (h *Helpdesk) Import(ctx context.Context, rawURL, category, tags string) (domain.Article, error) {
	page, err := h.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return domain.Article{}, fmt.Errorf("import: %w", err)
	}
	snap, err := h.Articles.Commit(nil, func(f *domain.ArticleForm) {
		*f = page.Form(category, tags)
	})
	if err != nil {
		return domain.Article{}, fmt.Errorf("import: %w", err)
	}
	h.logger.Info("article imported", "url", page.URL, "article", snap.Selected.ID)
	return *snap.Selected, nil
}

// Settings returns the saved preferences
func (h *Helpdesk) Settings() (settings.Settings, error) {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()
	return settings.Load(h.store)
}

// SaveSettings validates and stores the preferences
func (h *Helpdesk) SaveSettings(s settings.Settings) error {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()
	return settings.Save(h.store, s)
}

// UpdateSetting changes a single preference and stores the result
func (h *Helpdesk) UpdateSetting(category, key, value string) (settings.Settings, error) {
	h.settingsMu.Lock()
	defer h.settingsMu.Unlock()

	s, err := settings.Load(h.store)
	if err != nil {
		return s, err
	}
	s, err = s.Update(category, key, value)
	if err != nil {
		return s, err
	}
	if err := settings.Save(h.store, s); err != nil {
		return s, err
	}
	return s, nil
}
