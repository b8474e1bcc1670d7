package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/devkekops/weekender/internal/app/entity"
)

func TestLoadSettingsDefaultsWhenMissing(t *testing.T) {
	s, catalogue, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Empty(t, catalogue)
	require.Equal(t, entity.DefaultSettings().Withdrawal.OpenAt, s.Withdrawal.OpenAt)
	require.True(t, s.Rates.A.Equal(decimal.NewFromInt(12)))

	s, _, err = LoadSettings("")
	require.NoError(t, err)
	require.True(t, s.Rates.D.Equal(decimal.NewFromInt(2)))
}

func TestLoadSettingsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	body := `
referral_rates:
  a: "10"
  c: "3.5"
withdrawal:
  min: "50"
  max: "1000"
  weekdays: [Friday, sat]
  open_at: "09:00"
  close_at: "21:30"
  frequency_days: 7
bonus_grant: "25"
products:
  - id: wk-30
    kind: weekend
    price: "1000"
    accrual_rate: "15"
    waiting_days: 30
  - id: std-90
    kind: Standard
    price: "500"
    waiting_days: 90
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	s, catalogue, err := LoadSettings(path)
	require.NoError(t, err)
	require.Len(t, catalogue, 2)
	require.Equal(t, entity.OrderWeekend, catalogue["wk-30"].Kind)
	require.True(t, catalogue["wk-30"].AccrualRate.Equal(decimal.NewFromInt(15)))
	require.Equal(t, entity.OrderStandard, catalogue["std-90"].Kind)
	require.True(t, catalogue["std-90"].AccrualRate.IsZero())
	require.True(t, s.Rates.A.Equal(decimal.NewFromInt(10)))
	require.True(t, s.Rates.B.Equal(decimal.NewFromInt(7)))
	require.True(t, s.Rates.C.Equal(decimal.RequireFromString("3.5")))
	require.True(t, s.Withdrawal.Min.Equal(decimal.NewFromInt(50)))
	require.True(t, s.Withdrawal.Max.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, []time.Weekday{time.Friday, time.Saturday}, s.Withdrawal.Weekdays)
	require.Equal(t, "09:00", s.Withdrawal.OpenAt)
	require.Equal(t, "21:30", s.Withdrawal.CloseAt)
	require.Equal(t, 7, s.Withdrawal.FrequencyDays)
	require.True(t, s.BonusGrant.Equal(decimal.NewFromInt(25)))
}

func TestLoadSettingsRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"bad day":    "withdrawal:\n  weekdays: [funday]\n",
		"bad amount": "withdrawal:\n  min: \"ten\"\n",
		"inverted":   "withdrawal:\n  open_at: \"20:00\"\n  close_at: \"08:00\"\n",
		"negative":   "referral_rates:\n  a: \"-1\"\n",
		"bad kind":   "products:\n  - id: p\n    kind: gold\n    price: \"1\"\n",
		"duplicate":  "products:\n  - id: p\n    kind: weekend\n    price: \"1\"\n  - id: p\n    kind: weekend\n    price: \"2\"\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, _, err := LoadSettings(path)
			require.Error(t, err)
		})
	}
}
