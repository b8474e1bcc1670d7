package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Level identifies an upline depth, A being the direct referrer.
type Level string

const (
	LevelA Level = "A"
	LevelB Level = "B"
	LevelC Level = "C"
	LevelD Level = "D"
)

var Levels = [4]Level{LevelA, LevelB, LevelC, LevelD}

// RateTable holds referral percentages per level.
type RateTable struct {
	A decimal.Decimal `json:"a"`
	B decimal.Decimal `json:"b"`
	C decimal.Decimal `json:"c"`
	D decimal.Decimal `json:"d"`
}

func DefaultRateTable() RateTable {
	return RateTable{
		A: decimal.NewFromInt(12),
		B: decimal.NewFromInt(7),
		C: decimal.NewFromInt(4),
		D: decimal.NewFromInt(2),
	}
}

func (t RateTable) Rate(level Level) decimal.Decimal {
	switch level {
	case LevelA:
		return t.A
	case LevelB:
		return t.B
	case LevelC:
		return t.C
	case LevelD:
		return t.D
	}
	return decimal.Zero
}

// WithdrawalPolicy is the global gate for submissions. OpenAt and CloseAt are
// "HH:MM" wall-clock values in the settlement zone.
type WithdrawalPolicy struct {
	Min           decimal.Decimal `json:"min"`
	Max           decimal.Decimal `json:"max"`
	Weekdays      []time.Weekday  `json:"weekdays"`
	OpenAt        string          `json:"open_at"`
	CloseAt       string          `json:"close_at"`
	FrequencyDays int             `json:"frequency_days"`
}

func DefaultWithdrawalPolicy() WithdrawalPolicy {
	return WithdrawalPolicy{
		Min:           decimal.NewFromInt(100),
		Max:           decimal.NewFromInt(50000),
		Weekdays:      []time.Weekday{time.Saturday, time.Sunday},
		OpenAt:        "10:00",
		CloseAt:       "18:00",
		FrequencyDays: 1,
	}
}

// Validate checks the policy is internally consistent.
func (p WithdrawalPolicy) Validate() error {
	if p.Min.IsNegative() {
		return fmt.Errorf("min amount must be non-negative")
	}
	if p.Max.LessThan(p.Min) {
		return fmt.Errorf("max amount %s below min %s", p.Max, p.Min)
	}
	if len(p.Weekdays) == 0 {
		return fmt.Errorf("at least one active weekday required")
	}
	open, err := ParseClock(p.OpenAt)
	if err != nil {
		return fmt.Errorf("open_at: %w", err)
	}
	closeAt, err := ParseClock(p.CloseAt)
	if err != nil {
		return fmt.Errorf("close_at: %w", err)
	}
	if closeAt <= open {
		return fmt.Errorf("close_at %s must be after open_at %s", p.CloseAt, p.OpenAt)
	}
	if p.FrequencyDays < 1 {
		return fmt.Errorf("frequency_days must be at least 1")
	}
	return nil
}

// ParseClock converts "HH:MM" into an offset from midnight.
func ParseClock(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", raw)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Settings is the read-only global configuration the core consumes.
type Settings struct {
	Rates      RateTable        `json:"rates"`
	Withdrawal WithdrawalPolicy `json:"withdrawal"`
	BonusGrant decimal.Decimal  `json:"bonus_grant"`
}

func DefaultSettings() Settings {
	return Settings{
		Rates:      DefaultRateTable(),
		Withdrawal: DefaultWithdrawalPolicy(),
		BonusGrant: decimal.Zero,
	}
}
