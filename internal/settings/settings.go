// Package settings models the help desk's preferences panel. Settings
// are persisted as one JSON document.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/pbaille/helpdesk/internal/domain"
	"github.com/pbaille/helpdesk/internal/store"
)

// Key is the storage key of the settings document
const Key = store.KeySettings

// Allowed values
var (
	Themes    = []string{"light", "dark", "auto"}
	Languages = []string{"en", "es", "fr", "de"}
	Timezones = []string{"UTC", "America/New_York", "America/Chicago", "America/Denver", "America/Los_Angeles"}
)

// Notifications holds notification preferences
type Notifications struct {
	Email         bool `json:"emailNotifications"`
	Push          bool `json:"pushNotifications"`
	TicketUpdates bool `json:"ticketUpdates"`
	SystemAlerts  bool `json:"systemAlerts"`
}

// Appearance holds display preferences
type Appearance struct {
	Theme    string `json:"theme"`
	Language string `json:"language"`
	Timezone string `json:"timezone"`
}

// Security holds session and password policy. Durations are in
// minutes and days respectively.
type Security struct {
	TwoFactorAuth  bool `json:"twoFactorAuth"`
	SessionTimeout int  `json:"sessionTimeout"`
	PasswordExpiry int  `json:"passwordExpiry"`
}

// System holds ticket handling defaults
type System struct {
	AutoAssignment    bool   `json:"autoAssignment"`
	DefaultPriority   string `json:"defaultPriority"`
	TicketPrefix      string `json:"ticketPrefix"`
	MaxAttachmentSize int    `json:"maxAttachmentSize"`
}

// Settings is the full preferences document
type Settings struct {
	Notifications Notifications `json:"notifications"`
	Appearance    Appearance    `json:"appearance"`
	Security      Security      `json:"security"`
	System        System        `json:"system"`
}

// Defaults returns the settings used before anything is saved
func Defaults() Settings {
	return Settings{
		Notifications: Notifications{Email: true, Push: false, TicketUpdates: true, SystemAlerts: true},
		Appearance:    Appearance{Theme: "light", Language: "en", Timezone: "UTC"},
		Security:      Security{TwoFactorAuth: false, SessionTimeout: 30, PasswordExpiry: 90},
		System:        System{AutoAssignment: true, DefaultPriority: domain.PriorityMedium, TicketPrefix: "HD", MaxAttachmentSize: 10},
	}
}

// Validate checks enumerations and ranges
func (s Settings) Validate() error {
	var fields []domain.FieldError
	oneOf := func(field, value string, allowed []string) {
		if !slices.Contains(allowed, value) {
			fields = append(fields, domain.FieldError{Field: field, Message: "must be one of " + strings.Join(allowed, ", ")})
		}
	}
	between := func(field string, value, lo, hi int) {
		if value < lo || value > hi {
			fields = append(fields, domain.FieldError{Field: field, Message: fmt.Sprintf("must be between %d and %d", lo, hi)})
		}
	}

	oneOf("appearance.theme", s.Appearance.Theme, Themes)
	oneOf("appearance.language", s.Appearance.Language, Languages)
	oneOf("appearance.timezone", s.Appearance.Timezone, Timezones)
	between("security.sessionTimeout", s.Security.SessionTimeout, 5, 480)
	between("security.passwordExpiry", s.Security.PasswordExpiry, 30, 365)
	oneOf("system.defaultPriority", s.System.DefaultPriority, domain.Priorities)
	if len(s.System.TicketPrefix) > 5 {
		fields = append(fields, domain.FieldError{Field: "system.ticketPrefix", Message: "must be at most 5 characters"})
	}
	between("system.maxAttachmentSize", s.System.MaxAttachmentSize, 1, 100)

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}

// Update sets one field from its text form, the way the panel edits a
// single control. The result is not validated.
func (s Settings) Update(category, key, value string) (Settings, error) {
	field := category + "." + key
	var err error
	switch field {
	case "notifications.emailNotifications":
		s.Notifications.Email, err = strconv.ParseBool(value)
	case "notifications.pushNotifications":
		s.Notifications.Push, err = strconv.ParseBool(value)
	case "notifications.ticketUpdates":
		s.Notifications.TicketUpdates, err = strconv.ParseBool(value)
	case "notifications.systemAlerts":
		s.Notifications.SystemAlerts, err = strconv.ParseBool(value)
	case "appearance.theme":
		s.Appearance.Theme = value
	case "appearance.language":
		s.Appearance.Language = value
	case "appearance.timezone":
		s.Appearance.Timezone = value
	case "security.twoFactorAuth":
		s.Security.TwoFactorAuth, err = strconv.ParseBool(value)
	case "security.sessionTimeout":
		s.Security.SessionTimeout, err = strconv.Atoi(value)
	case "security.passwordExpiry":
		s.Security.PasswordExpiry, err = strconv.Atoi(value)
	case "system.autoAssignment":
		s.System.AutoAssignment, err = strconv.ParseBool(value)
	case "system.defaultPriority":
		s.System.DefaultPriority = value
	case "system.ticketPrefix":
		s.System.TicketPrefix = value
	case "system.maxAttachmentSize":
		s.System.MaxAttachmentSize, err = strconv.Atoi(value)
	default:
		return s, fmt.Errorf("unknown setting %s: %w", field, domain.ErrNotFound)
	}
	if err != nil {
		return s, &domain.ValidationError{Fields: []domain.FieldError{{Field: field, Message: "has an invalid value " + strconv.Quote(value)}}}
	}
	return s, nil
}

// KV is the byte store settings are persisted in
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Load reads the saved settings, or the defaults when none are saved.
// Fields missing from the saved document keep their defaults.
func Load(kv KV) (Settings, error) {
	s := Defaults()
	data, err := kv.Get(Key)
	if errors.Is(err, domain.ErrNotFound) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("load settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Save validates s and writes it
func Save(kv KV, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := kv.Put(Key, data); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}
