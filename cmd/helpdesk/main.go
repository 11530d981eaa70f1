package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/pbaille/helpdesk/internal/api"
	"github.com/pbaille/helpdesk/internal/config"
	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/pbaille/helpdesk/internal/filter"
	"github.com/pbaille/helpdesk/internal/helpdesk"
	"github.com/pbaille/helpdesk/internal/settings"
	"github.com/pbaille/helpdesk/internal/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "helpdesk",
		Short:        "Help desk tickets and knowledge base",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $HELPDESK_CONFIG)")

	rootCmd.AddCommand(ticketsCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(settingsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DB = dbPath
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.SQLite, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(cfg.DB)
}

// withHelpdesk opens the database, loads both desks without delay and
// runs fn
func withHelpdesk(cmd *cobra.Command, fn func(h *helpdesk.Helpdesk) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	h, err := helpdesk.New(helpdesk.Options{
		Store:  s,
		Agent:  cfg.Agent,
		Logger: cfg.Logger(os.Stderr),
	})
	if err != nil {
		return err
	}
	defer h.Close()

	h.Start()
	if err := h.Wait(cmd.Context()); err != nil {
		return err
	}
	return fn(h)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id: %s", s)
	}
	return id, nil
}

// confirm asks a yes/no question on in
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func truncate(s string, max int) string {
	// Replace newlines with spaces for display
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// Tickets

func ticketsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tickets",
		Aliases: []string{"ticket", "t"},
		Short:   "Manage support tickets",
	}
	cmd.AddCommand(ticketListCmd())
	cmd.AddCommand(ticketShowCmd())
	cmd.AddCommand(ticketCreateCmd())
	cmd.AddCommand(ticketUpdateCmd())
	cmd.AddCommand(ticketDeleteCmd())
	cmd.AddCommand(ticketReplyCmd())
	cmd.AddCommand(ticketSuggestCmd())
	return cmd
}

func ticketListCmd() *cobra.Command {
	var status, priority string

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List tickets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				h.Tickets.FilterBy(filter.And(filter.Status(status), filter.Priority(priority)))
				snap := h.Tickets.Search(strings.Join(args, " "))

				if len(snap.Filtered) == 0 {
					fmt.Println("No tickets found.")
					return nil
				}
				for _, t := range snap.Filtered {
					fmt.Printf("%-14d %-12s %-7s %-14s %s\n", t.ID, t.Status, t.Priority, truncate(t.Assignee, 14), truncate(t.Title, 50))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&status, "status", "s", filter.All, "filter by status (open, in-progress, resolved, all)")
	cmd.Flags().StringVarP(&priority, "priority", "p", filter.All, "filter by priority (low, medium, high, all)")
	return cmd
}

func ticketShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show ticket details with conversation and audit log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				snap, err := h.Tickets.Select(id)
				if err != nil {
					return err
				}
				t := snap.Selected

				fmt.Printf("ID:       %d\n", t.ID)
				fmt.Printf("Title:    %s\n", t.Title)
				fmt.Printf("Status:   %s\n", domain.StatusLabel(t.Status))
				fmt.Printf("Priority: %s\n", t.Priority)
				fmt.Printf("Assignee: %s\n", t.Assignee)
				fmt.Printf("Customer: %s\n", t.Customer)
				fmt.Printf("Created:  %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("Updated:  %s\n", t.UpdatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("\n%s\n", t.Description)

				if len(t.Conversation) > 0 {
					fmt.Printf("\nConversation:\n")
					for _, m := range t.Conversation {
						fmt.Printf("  [%s] %s (%s): %s\n", m.Timestamp.Format("2006-01-02 15:04"), m.Author, m.Role, m.Body)
					}
				}
				if len(t.AuditLog) > 0 {
					fmt.Printf("\nAudit log:\n")
					for _, e := range t.AuditLog {
						fmt.Printf("  %s  %s by %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Action, e.User)
					}
				}
				return nil
			})
		},
	}
}

func ticketFormFlags(cmd *cobra.Command, form *domain.TicketForm) {
	cmd.Flags().StringVar(&form.Title, "title", "", "ticket title")
	cmd.Flags().StringVar(&form.Description, "description", "", "ticket description")
	cmd.Flags().StringVar(&form.Status, "status", "", "status (open, in-progress, resolved)")
	cmd.Flags().StringVar(&form.Priority, "priority", "", "priority (low, medium, high)")
	cmd.Flags().StringVar(&form.Assignee, "assignee", "", "assigned agent")
	cmd.Flags().StringVar(&form.Customer, "customer", "", "requesting customer")
}

func ticketCreateCmd() *cobra.Command {
	var form domain.TicketForm

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				snap, err := h.Tickets.Commit(nil, func(f *domain.TicketForm) { *f = form })
				if err != nil {
					return err
				}
				fmt.Printf("Created ticket %d: %s\n", snap.Selected.ID, snap.Selected.Title)
				return nil
			})
		},
	}

	ticketFormFlags(cmd, &form)
	return cmd
}

func ticketUpdateCmd() *cobra.Command {
	var form domain.TicketForm

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update a ticket; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				snap, err := h.Tickets.Commit(&id, func(f *domain.TicketForm) {
					if flags.Changed("title") {
						f.Title = form.Title
					}
					if flags.Changed("description") {
						f.Description = form.Description
					}
					if flags.Changed("status") {
						f.Status = form.Status
					}
					if flags.Changed("priority") {
						f.Priority = form.Priority
					}
					if flags.Changed("assignee") {
						f.Assignee = form.Assignee
					}
					if flags.Changed("customer") {
						f.Customer = form.Customer
					}
				})
				if err != nil {
					return err
				}
				fmt.Printf("Updated ticket %d (%s)\n", snap.Selected.ID, domain.StatusLabel(snap.Selected.Status))
				return nil
			})
		},
	}

	ticketFormFlags(cmd, &form)
	return cmd
}

func ticketDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				t, err := h.Tickets.Get(id)
				if err != nil {
					return err
				}
				if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete ticket %q?", t.Title)) {
					fmt.Println("Cancelled.")
					return nil
				}
				if _, err := h.Tickets.Delete(id); err != nil {
					return err
				}
				fmt.Printf("Deleted ticket %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func ticketReplyCmd() *cobra.Command {
	var author string

	cmd := &cobra.Command{
		Use:   "reply [id] [message]",
		Short: "Add an agent reply to a ticket",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				t, err := h.Reply(id, author, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Printf("Reply added to ticket %d (%d messages)\n", t.ID, len(t.Conversation))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&author, "author", "", "reply author (default: configured agent)")
	return cmd
}

func ticketSuggestCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "suggest [id]",
		Short: "Suggest knowledge-base articles for a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				suggestions, err := h.Suggest(id, limit)
				if err != nil {
					return err
				}
				if len(suggestions) == 0 {
					fmt.Println("No related articles found.")
					return nil
				}
				for _, s := range suggestions {
					fmt.Printf("%3d%%  %-14d %s\n", s.Relevance, s.ArticleID, s.Title)
					fmt.Printf("      %s\n", truncate(s.Excerpt, 70))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", helpdesk.DefaultSuggestions, "number of suggestions")
	return cmd
}

// Knowledge base

func articlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "articles",
		Aliases: []string{"article", "kb"},
		Short:   "Manage knowledge-base articles",
	}
	cmd.AddCommand(articleListCmd())
	cmd.AddCommand(articleShowCmd())
	cmd.AddCommand(articleCreateCmd())
	cmd.AddCommand(articleUpdateCmd())
	cmd.AddCommand(articleDeleteCmd())
	cmd.AddCommand(articleImportCmd())
	return cmd
}

func articleListCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "list [query]",
		Short: "List articles",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				h.Articles.FilterBy(filter.Category(category))
				snap := h.Articles.Search(strings.Join(args, " "))

				if len(snap.Filtered) == 0 {
					fmt.Println("No articles found.")
					return nil
				}
				for _, a := range snap.Filtered {
					fmt.Printf("%-14d %5d views  %-20s %s\n", a.ID, a.Views, truncate(a.Category, 20), truncate(a.Title, 50))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", filter.All, "filter by category")
	return cmd
}

func articleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show an article (counts as a view)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				snap, err := h.Articles.Select(id)
				if err != nil {
					return err
				}
				a := snap.Selected

				fmt.Printf("%s\n", a.Title)
				fmt.Printf("%s · %d views · updated %s\n", a.Category, a.Views, a.UpdatedAt.Format("2006-01-02"))
				if len(a.Tags) > 0 {
					fmt.Printf("Tags: %s\n", domain.JoinTags(a.Tags))
				}
				fmt.Printf("\n%s\n", a.Content)
				return nil
			})
		},
	}
}

func articleFormFlags(cmd *cobra.Command, form *domain.ArticleForm) {
	cmd.Flags().StringVar(&form.Title, "title", "", "article title")
	cmd.Flags().StringVar(&form.Content, "content", "", "article content")
	cmd.Flags().StringVar(&form.Category, "category", "", "article category")
	cmd.Flags().StringVar(&form.Tags, "tags", "", "comma-separated tags")
}

func articleCreateCmd() *cobra.Command {
	var form domain.ArticleForm

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an article",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				snap, err := h.Articles.Commit(nil, func(f *domain.ArticleForm) { *f = form })
				if err != nil {
					return err
				}
				fmt.Printf("Created article %d: %s\n", snap.Selected.ID, snap.Selected.Title)
				return nil
			})
		},
	}

	articleFormFlags(cmd, &form)
	return cmd
}

func articleUpdateCmd() *cobra.Command {
	var form domain.ArticleForm

	cmd := &cobra.Command{
		Use:   "update [id]",
		Short: "Update an article; only the given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				snap, err := h.Articles.Commit(&id, func(f *domain.ArticleForm) {
					if flags.Changed("title") {
						f.Title = form.Title
					}
					if flags.Changed("content") {
						f.Content = form.Content
					}
					if flags.Changed("category") {
						f.Category = form.Category
					}
					if flags.Changed("tags") {
						f.Tags = form.Tags
					}
				})
				if err != nil {
					return err
				}
				fmt.Printf("Updated article %d\n", snap.Selected.ID)
				return nil
			})
		},
	}

	articleFormFlags(cmd, &form)
	return cmd
}

func articleDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				a, err := h.Articles.Get(id)
				if err != nil {
					return err
				}
				if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete article %q?", a.Title)) {
					fmt.Println("Cancelled.")
					return nil
				}
				if _, err := h.Articles.Delete(id); err != nil {
					return err
				}
				fmt.Printf("Deleted article %d\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func articleImportCmd() *cobra.Command {
	var category, tags string

	cmd := &cobra.Command{
		Use:   "import [url]",
		Short: "Import a web page as an article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				fmt.Print("Fetching... ")
				a, err := h.Import(cmd.Context(), args[0], category, tags)
				if err != nil {
					fmt.Println("failed")
					return err
				}
				fmt.Println("done")
				fmt.Printf("Imported article %d: %s\n", a.ID, a.Title)
				fmt.Printf("Content: %s\n", truncate(a.Content, 80))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "General", "article category")
	cmd.Flags().StringVarP(&tags, "tags", "t", "", "comma-separated tags")
	return cmd
}

// Settings

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change help desk settings",
	}
	cmd.AddCommand(settingsShowCmd())
	cmd.AddCommand(settingsSetCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show all settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				s, err := h.Settings()
				if err != nil {
					return err
				}
				printSettings(s)
				return nil
			})
		},
	}
}

func printSettings(s settings.Settings) {
	fmt.Printf("notifications.emailNotifications  %t\n", s.Notifications.Email)
	fmt.Printf("notifications.pushNotifications   %t\n", s.Notifications.Push)
	fmt.Printf("notifications.ticketUpdates       %t\n", s.Notifications.TicketUpdates)
	fmt.Printf("notifications.systemAlerts        %t\n", s.Notifications.SystemAlerts)
	fmt.Printf("appearance.theme                  %s\n", s.Appearance.Theme)
	fmt.Printf("appearance.language               %s\n", s.Appearance.Language)
	fmt.Printf("appearance.timezone               %s\n", s.Appearance.Timezone)
	fmt.Printf("security.twoFactorAuth            %t\n", s.Security.TwoFactorAuth)
	fmt.Printf("security.sessionTimeout           %d\n", s.Security.SessionTimeout)
	fmt.Printf("security.passwordExpiry           %d\n", s.Security.PasswordExpiry)
	fmt.Printf("system.autoAssignment             %t\n", s.System.AutoAssignment)
	fmt.Printf("system.defaultPriority            %s\n", s.System.DefaultPriority)
	fmt.Printf("system.ticketPrefix               %s\n", s.System.TicketPrefix)
	fmt.Printf("system.maxAttachmentSize          %d\n", s.System.MaxAttachmentSize)
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [category.key] [value]",
		Short: "Change one setting, e.g. appearance.theme dark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, key, ok := strings.Cut(args[0], ".")
			if !ok {
				return fmt.Errorf("setting must be category.key, got %s", args[0])
			}
			return withHelpdesk(cmd, func(h *helpdesk.Helpdesk) error {
				if _, err := h.UpdateSetting(category, key, args[1]); err != nil {
					return err
				}
				fmt.Printf("%s = %s\n", args[0], args[1])
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			logger := cfg.Logger(os.Stderr)

			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			h, err := helpdesk.New(helpdesk.Options{
				Store:     s,
				LoadDelay: cfg.LoadDelay,
				Agent:     cfg.Agent,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			defer h.Close()
			h.Start()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server := api.New(h, cfg.Addr, cfg.ShutdownTimeout, logger)
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (overrides config)")
	return cmd
}
