package helpdesk

import (
	"time"

	"github.com/pbaille/helpdesk/internal/domain"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// SeedTickets is the ticket collection used before anything is saved
func SeedTickets() []domain.Ticket {
	return []domain.Ticket{
		{
			ID:          1,
			Title:       "Login issues with new account",
			Description: `Unable to login after creating account. I keep getting an error message saying "Invalid credentials" even though I'm sure I'm using the correct email and password.`,
			Status:      domain.StatusOpen,
			Priority:    domain.PriorityHigh,
			Assignee:    "John Doe",
			Customer:    "Alice Johnson",
			CreatedAt:   at("2024-01-15T10:30:00Z"),
			UpdatedAt:   at("2024-01-15T14:20:00Z"),
			Conversation: []domain.Message{
				{ID: "1", Author: "Alice Johnson", Role: domain.RoleCustomer, Body: "I created my account yesterday but I can't seem to log in. I've tried resetting my password twice.", Timestamp: at("2024-01-15T10:30:00Z")},
				{ID: "2", Author: "John Doe", Role: domain.RoleAgent, Body: "Hi Alice, I'm sorry to hear you're having trouble logging in. Let me check your account status and see what might be causing this issue.", Timestamp: at("2024-01-15T11:15:00Z")},
				{ID: "3", Author: "John Doe", Role: domain.RoleAgent, Body: "I can see your account was created successfully. Can you please try clearing your browser cache and cookies, then attempt to log in again?", Timestamp: at("2024-01-15T11:20:00Z")},
			},
			AuditLog: []domain.AuditEntry{
				{ID: "1", Action: "Ticket created", User: "Alice Johnson", Timestamp: at("2024-01-15T10:30:00Z")},
				{ID: "2", Action: "Assigned to John Doe", User: "System", Timestamp: at("2024-01-15T10:35:00Z")},
				{ID: "3", Action: "Status changed to Open", User: "John Doe", Timestamp: at("2024-01-15T11:15:00Z")},
				{ID: "4", Action: "Response added", User: "John Doe", Timestamp: at("2024-01-15T11:20:00Z")},
			},
		},
		{
			ID:          2,
			Title:       "Feature request: Dark mode",
			Description: "Would like to have a dark mode option",
			Status:      domain.StatusInProgress,
			Priority:    domain.PriorityMedium,
			Assignee:    "Jane Smith",
			CreatedAt:   at("2024-01-14T09:15:00Z"),
			UpdatedAt:   at("2024-01-15T11:45:00Z"),
		},
		{
			ID:          3,
			Title:       "Bug: Export function not working",
			Description: "Export to CSV returns empty file",
			Status:      domain.StatusResolved,
			Priority:    domain.PriorityHigh,
			Assignee:    "Mike Johnson",
			CreatedAt:   at("2024-01-13T16:20:00Z"),
			UpdatedAt:   at("2024-01-14T10:30:00Z"),
		},
	}
}

// SeedArticles is the knowledge base used before anything is saved
func SeedArticles() []domain.Article {
	return []domain.Article{
		{
			ID:        1,
			Title:     "How to Reset Your Password",
			Content:   "To reset your password, follow these steps:\n\n1. Go to the login page\n2. Click \"Forgot Password\"\n3. Enter your email address\n4. Check your email for reset instructions\n5. Follow the link in the email\n6. Create a new password",
			Category:  "Account Management",
			Tags:      []string{"password", "reset", "login"},
			CreatedAt: at("2024-01-10T10:00:00Z"),
			UpdatedAt: at("2024-01-12T15:30:00Z"),
			Views:     245,
		},
		{
			ID:        2,
			Title:     "Browser Compatibility Issues",
			Content:   "If you're experiencing issues with our application, it might be due to browser compatibility. Here are the supported browsers:\n\n- Chrome 90+\n- Firefox 88+\n- Safari 14+\n- Edge 90+\n\nFor best performance, please ensure your browser is up to date.",
			Category:  "Technical Support",
			Tags:      []string{"browser", "compatibility", "technical"},
			CreatedAt: at("2024-01-08T14:20:00Z"),
			UpdatedAt: at("2024-01-10T09:15:00Z"),
			Views:     189,
		},
		{
			ID:        3,
			Title:     "Account Activation Process",
			Content:   "After creating your account, you need to activate it:\n\n1. Check your email inbox\n2. Look for an email from our system\n3. Click the activation link\n4. Your account will be activated automatically\n\nIf you don't receive the email, check your spam folder or contact support.",
			Category:  "Account Management",
			Tags:      []string{"activation", "account", "email"},
			CreatedAt: at("2024-01-05T11:45:00Z"),
			UpdatedAt: at("2024-01-07T16:20:00Z"),
			Views:     156,
		},
	}
}
