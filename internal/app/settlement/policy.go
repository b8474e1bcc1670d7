package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/devkekops/weekender/internal/app/entity"
)

var feeRate = decimal.RequireFromString("0.05")

// Fee splits a gross amount into the fee and what the account receives.
// fee + net always equals amount.
func Fee(amount decimal.Decimal) (fee, net decimal.Decimal) {
	fee = amount.Mul(feeRate)
	return fee, amount.Sub(fee)
}

// Money amounts carry at most two decimal places. The exponent is bounded
// before any comparison, since rescaling to an extreme exponent costs time
// proportional to its size.
const (
	minAmountExponent = -2
	maxAmountExponent = 15
)

// parseMoney parses a positive amount with a bounded exponent.
func parseMoney(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "not a number"}
	}
	if exp := amount.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "at most two decimal places and fifteen digits"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &ValidationError{Field: "amount", Reason: "must be positive"}
	}
	return amount, nil
}

func parseAmount(raw string, p entity.WithdrawalPolicy) (decimal.Decimal, error) {
	amount, err := parseMoney(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.LessThan(p.Min) || amount.GreaterThan(p.Max) {
		return decimal.Zero, &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be between %s and %s", p.Min, p.Max),
		}
	}
	return amount, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.In(Zone)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, Zone)
}

// checkWindow verifies now falls on an active weekday and inside the daily
// window, both read in Zone. The window is half open: [open, close).
func checkWindow(p entity.WithdrawalPolicy, now time.Time) error {
	local := now.In(Zone)
	active := false
	for _, d := range p.Weekdays {
		if d == local.Weekday() {
			active = true
			break
		}
	}
	if !active {
		return &ValidationError{Field: "weekday", Reason: local.Weekday().String() + " is not a withdrawal day"}
	}

	open, err := entity.ParseClock(p.OpenAt)
	if err != nil {
		return err
	}
	closeAt, err := entity.ParseClock(p.CloseAt)
	if err != nil {
		return err
	}
	sinceMidnight := local.Sub(startOfDay(local))
	if sinceMidnight < open || sinceMidnight >= closeAt {
		return &ValidationError{
			Field:  "time",
			Reason: fmt.Sprintf("withdrawals are accepted between %s and %s", p.OpenAt, p.CloseAt),
		}
	}
	return nil
}

// frequencyCutoff is the earliest creation time of a request that still
// blocks a new one submitted at now.
func frequencyCutoff(p entity.WithdrawalPolicy, now time.Time) time.Time {
	return startOfDay(now).AddDate(0, 0, -(p.FrequencyDays - 1))
}

func frequencyError(p entity.WithdrawalPolicy, last, now time.Time) *FrequencyRestrictionError {
	next := startOfDay(last).AddDate(0, 0, p.FrequencyDays)
	return &FrequencyRestrictionError{
		LastRequestAt: last,
		NextAllowedAt: next,
		Wait:          next.Sub(now),
	}
}
