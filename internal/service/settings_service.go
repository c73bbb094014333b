package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidSetting = errors.New("invalid setting")

// SettingsService reads and updates the site settings bag
type SettingsService interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, patch map[string]json.RawMessage) (domain.Settings, error)
}

type settingsService struct {
	repo     repository.SettingsRepository
	validate *validator.Validate
}

// NewSettingsService creates a new instance of SettingsService
func NewSettingsService(repo repository.SettingsRepository) SettingsService {
	return &settingsService{
		repo:     repo,
		validate: validator.New(),
	}
}

// Get returns the typed settings with defaults filled in
func (s *settingsService) Get(ctx context.Context) (domain.Settings, error) {
	bag, err := s.repo.All(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return domain.SettingsFromBag(bag), nil
}

// Update validates and stores the recognized keys of patch. Unknown keys are
// ignored. Nothing is written if any recognized value is invalid.
func (s *settingsService) Update(ctx context.Context, patch map[string]json.RawMessage) (domain.Settings, error) {
	values := make(map[string]any)

	for key, raw := range patch {
		if !domain.IsSettingKey(key) {
			continue
		}

		value, err := s.normalize(key, raw)
		if err != nil {
			return domain.Settings{}, err
		}
		values[key] = value
	}

	if err := s.repo.Upsert(ctx, values); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to save settings: %w", err)
	}

	return s.Get(ctx)
}

func (s *settingsService) normalize(key string, raw json.RawMessage) (any, error) {
	switch key {
	case domain.SettingStockDisplay:
		v, ok := domain.ParseSettingBool(raw)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a boolean", ErrInvalidSetting, key)
		}
		return v, nil

	case domain.SettingWhatsAppNumber:
		// numbers are sometimes sent unquoted
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			return domain.DigitsOnly(n.String()), nil
		}
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, fmt.Errorf("%w: %s must be a string", ErrInvalidSetting, key)
	}
	str = strings.TrimSpace(str)

	switch key {
	case domain.SettingTheme:
		if !domain.Theme(str).Valid() {
			return nil, fmt.Errorf("%w: theme must be one of light, dark or system", ErrInvalidSetting)
		}
	case domain.SettingWhatsAppNumber:
		str = domain.DigitsOnly(str)
	case domain.SettingContactEmail:
		if err := s.validate.Var(str, "omitempty,email"); err != nil {
			return nil, fmt.Errorf("%w: contact_email is not a valid email address", ErrInvalidSetting)
		}
	case domain.SettingBusinessName:
		if str == "" {
			str = domain.DefaultSettings().BusinessName
		}
	}

	return str, nil
}
