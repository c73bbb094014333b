package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Theme is the storefront color scheme
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Valid reports whether t is one of the supported themes
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Recognized settings keys
const (
	SettingBusinessName    = "business_name"
	SettingTagline         = "tagline"
	SettingLogoURL         = "logo_url"
	SettingTheme           = "theme"
	SettingWhatsAppNumber  = "whatsapp_number"
	SettingStockDisplay    = "stock_display"
	SettingContactEmail    = "contact_email"
	SettingPhone           = "phone"
	SettingAddress         = "address"
	SettingPayPalClientID  = "paypal_client_id"
	SettingMMGInstructions = "mmg_instructions"
)

// SettingKeys lists every key the settings bag keeps. Anything else is dropped on write.
var SettingKeys = []string{
	SettingBusinessName,
	SettingTagline,
	SettingLogoURL,
	SettingTheme,
	SettingWhatsAppNumber,
	SettingStockDisplay,
	SettingContactEmail,
	SettingPhone,
	SettingAddress,
	SettingPayPalClientID,
	SettingMMGInstructions,
}

// IsSettingKey reports whether key is a recognized settings key
func IsSettingKey(key string) bool {
	for _, k := range SettingKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Settings is the typed view of the site settings bag
type Settings struct {
	BusinessName    string `json:"business_name"`
	Tagline         string `json:"tagline"`
	LogoURL         string `json:"logo_url"`
	Theme           Theme  `json:"theme"`
	WhatsAppNumber  string `json:"whatsapp_number"`
	StockDisplay    bool   `json:"stock_display"`
	ContactEmail    string `json:"contact_email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	PayPalClientID  string `json:"paypal_client_id"`
	MMGInstructions string `json:"mmg_instructions"`
}

// DefaultSettings returns the settings used when nothing has been stored
func DefaultSettings() Settings {
	return Settings{
		BusinessName: "My Store",
		Theme:        ThemeLight,
	}
}

// SettingsFromBag builds Settings from stored key/value pairs. Missing or
// malformed values fall back to their defaults.
func SettingsFromBag(bag map[string]json.RawMessage) Settings {
	s := DefaultSettings()

	strs := map[string]*string{
		SettingBusinessName:    &s.BusinessName,
		SettingTagline:         &s.Tagline,
		SettingLogoURL:         &s.LogoURL,
		SettingWhatsAppNumber:  &s.WhatsAppNumber,
		SettingContactEmail:    &s.ContactEmail,
		SettingPhone:           &s.Phone,
		SettingAddress:         &s.Address,
		SettingPayPalClientID:  &s.PayPalClientID,
		SettingMMGInstructions: &s.MMGInstructions,
	}
	for key, dst := range strs {
		raw, ok := bag[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err == nil {
			*dst = v
		}
	}

	if raw, ok := bag[SettingTheme]; ok {
		var v string
		if err := json.Unmarshal(raw, &v); err == nil && Theme(v).Valid() {
			s.Theme = Theme(v)
		}
	}

	if raw, ok := bag[SettingStockDisplay]; ok {
		if v, ok := ParseSettingBool(raw); ok {
			s.StockDisplay = v
		}
	}

	return s
}

// ParseSettingBool accepts a JSON bool or a string such as "true" or "0".
func ParseSettingBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, false
	}
	return b, true
}

// DigitsOnly strips every non-digit from s
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
