package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/devkekops/weekender/internal/app/entity"
)

type Config struct {
	RunAddress     string        `env:"RUN_ADDRESS"`
	DatabaseURI    string        `env:"DATABASE_URI"`
	SecretKey      string        `env:"SECRET_KEY"`
	OperatorKey    string        `env:"OPERATOR_KEY"`
	SettingsFile   string        `env:"SETTINGS_FILE"`
	MaxTxAttempts  int           `env:"MAX_TX_ATTEMPTS"`
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY"`
	LogLevel       string        `env:"LOG_LEVEL"`
}

// settingsFile mirrors the YAML layout of the global settings.
type settingsFile struct {
	Rates struct {
		A string `yaml:"a"`
		B string `yaml:"b"`
		C string `yaml:"c"`
		D string `yaml:"d"`
	} `yaml:"referral_rates"`
	Withdrawal struct {
		Min           string   `yaml:"min"`
		Max           string   `yaml:"max"`
		Weekdays      []string `yaml:"weekdays"`
		OpenAt        string   `yaml:"open_at"`
		CloseAt       string   `yaml:"close_at"`
		FrequencyDays int      `yaml:"frequency_days"`
	} `yaml:"withdrawal"`
	BonusGrant string        `yaml:"bonus_grant"`
	Products   []productFile `yaml:"products"`
}

type productFile struct {
	ID          string `yaml:"id"`
	Kind        string `yaml:"kind"`
	Price       string `yaml:"price"`
	AccrualRate string `yaml:"accrual_rate"`
	WaitingDays int    `yaml:"waiting_days"`
}

// Catalogue maps product ids to the products accounts may purchase.
type Catalogue map[string]entity.Product

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// LoadSettings reads the settings file. Keys left out keep their defaults,
// and an empty path or a missing file yields the defaults and an empty
// catalogue.
func LoadSettings(path string) (entity.Settings, Catalogue, error) {
	settings := entity.DefaultSettings()
	catalogue := Catalogue{}
	if path == "" {
		return settings, catalogue, nil
	}
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, catalogue, nil
	}
	if err != nil {
		return settings, nil, fmt.Errorf("open settings: %w", err)
	}
	defer file.Close()

	var raw settingsFile
	if err := yaml.NewDecoder(file).Decode(&raw); err != nil {
		return settings, nil, fmt.Errorf("decode settings: %w", err)
	}
	if settings, err = raw.apply(settings); err != nil {
		return settings, nil, err
	}
	for _, p := range raw.Products {
		product, err := p.product()
		if err != nil {
			return settings, nil, fmt.Errorf("product %q: %w", p.ID, err)
		}
		if _, exists := catalogue[product.ID]; exists {
			return settings, nil, fmt.Errorf("duplicate product %q", product.ID)
		}
		catalogue[product.ID] = product
	}
	return settings, catalogue, nil
}

func (p productFile) product() (entity.Product, error) {
	id := strings.TrimSpace(p.ID)
	if id == "" {
		return entity.Product{}, fmt.Errorf("id required")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		return entity.Product{}, fmt.Errorf("price: %w", err)
	}
	rate := decimal.Zero
	if strings.TrimSpace(p.AccrualRate) != "" {
		if rate, err = decimal.NewFromString(strings.TrimSpace(p.AccrualRate)); err != nil {
			return entity.Product{}, fmt.Errorf("accrual_rate: %w", err)
		}
	}
	product := entity.Product{
		ID:          id,
		Kind:        entity.OrderKind(strings.ToLower(strings.TrimSpace(p.Kind))),
		Price:       price,
		AccrualRate: rate,
		WaitingDays: p.WaitingDays,
	}
	return product, product.Validate()
}

func (f settingsFile) apply(s entity.Settings) (entity.Settings, error) {
	amounts := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"referral_rates.a", f.Rates.A, &s.Rates.A},
		{"referral_rates.b", f.Rates.B, &s.Rates.B},
		{"referral_rates.c", f.Rates.C, &s.Rates.C},
		{"referral_rates.d", f.Rates.D, &s.Rates.D},
		{"withdrawal.min", f.Withdrawal.Min, &s.Withdrawal.Min},
		{"withdrawal.max", f.Withdrawal.Max, &s.Withdrawal.Max},
		{"bonus_grant", f.BonusGrant, &s.BonusGrant},
	}
	for _, a := range amounts {
		if strings.TrimSpace(a.raw) == "" {
			continue
		}
		v, err := decimal.NewFromString(strings.TrimSpace(a.raw))
		if err != nil {
			return s, fmt.Errorf("%s: %w", a.name, err)
		}
		if v.IsNegative() {
			return s, fmt.Errorf("%s: must be non-negative", a.name)
		}
		*a.dst = v
	}

	if len(f.Withdrawal.Weekdays) > 0 {
		days := make([]time.Weekday, 0, len(f.Withdrawal.Weekdays))
		for _, name := range f.Withdrawal.Weekdays {
			key := strings.ToLower(strings.TrimSpace(name))
			if len(key) > 3 {
				key = key[:3]
			}
			day, ok := weekdays[key]
			if !ok {
				return s, fmt.Errorf("withdrawal.weekdays: unknown day %q", name)
			}
			days = append(days, day)
		}
		s.Withdrawal.Weekdays = days
	}
	if f.Withdrawal.OpenAt != "" {
		s.Withdrawal.OpenAt = f.Withdrawal.OpenAt
	}
	if f.Withdrawal.CloseAt != "" {
		s.Withdrawal.CloseAt = f.Withdrawal.CloseAt
	}
	if f.Withdrawal.FrequencyDays != 0 {
		s.Withdrawal.FrequencyDays = f.Withdrawal.FrequencyDays
	}

	if err := s.Withdrawal.Validate(); err != nil {
		return s, fmt.Errorf("withdrawal: %w", err)
	}
	return s, nil
}
