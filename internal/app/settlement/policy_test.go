package settlement

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/devkekops/weekender/internal/app/entity"
)

func TestCheckWindow(t *testing.T) {
	p := entity.DefaultWithdrawalPolicy()
	cases := []struct {
		name  string
		now   time.Time
		field string
	}{
		{"saturday open", time.Date(2024, 6, 15, 10, 0, 0, 0, Zone), ""},
		{"sunday before close", time.Date(2024, 6, 16, 17, 59, 0, 0, Zone), ""},
		{"sunday at close", time.Date(2024, 6, 16, 18, 0, 0, 0, Zone), "time"},
		{"saturday early", time.Date(2024, 6, 15, 9, 59, 0, 0, Zone), "time"},
		{"monday", time.Date(2024, 6, 17, 12, 0, 0, 0, Zone), "weekday"},
		{"utc evening is next day", time.Date(2024, 6, 14, 21, 0, 0, 0, time.UTC), "time"},
		{"utc morning in window", time.Date(2024, 6, 16, 8, 0, 0, 0, time.UTC), ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := checkWindow(p, c.now)
			if c.field == "" {
				require.NoError(t, err)
				return
			}
			var validation *ValidationError
			require.ErrorAs(t, err, &validation)
			require.Equal(t, c.field, validation.Field)
		})
	}
}

func TestFrequencyCutoff(t *testing.T) {
	p := entity.DefaultWithdrawalPolicy()
	now := time.Date(2024, 6, 15, 15, 30, 0, 0, Zone)
	require.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, Zone), frequencyCutoff(p, now))

	p.FrequencyDays = 3
	require.Equal(t, time.Date(2024, 6, 13, 0, 0, 0, 0, Zone), frequencyCutoff(p, now))

	// midnight in UTC+3 is 21:00 UTC the day before
	utc := time.Date(2024, 6, 14, 22, 0, 0, 0, time.UTC)
	p.FrequencyDays = 1
	require.True(t, frequencyCutoff(p, utc).Equal(time.Date(2024, 6, 14, 21, 0, 0, 0, time.UTC)))
}

func TestFrequencyError(t *testing.T) {
	p := entity.DefaultWithdrawalPolicy()
	p.FrequencyDays = 2
	last := time.Date(2024, 6, 15, 11, 0, 0, 0, Zone)
	now := time.Date(2024, 6, 16, 10, 0, 0, 0, Zone)
	err := frequencyError(p, last, now)
	require.Equal(t, time.Date(2024, 6, 17, 0, 0, 0, 0, Zone), err.NextAllowedAt)
	require.Equal(t, 14*time.Hour, err.Wait)
	require.Contains(t, err.Error(), "next allowed")
}

func TestParseAmount(t *testing.T) {
	p := entity.DefaultWithdrawalPolicy()
	amount, err := parseAmount(" 250.75 ", p)
	require.NoError(t, err)
	require.True(t, amount.Equal(decimal.RequireFromString("250.75")))

	for _, raw := range []string{"", "1e", "-100", "0", "99", "50000.01"} {
		_, err := parseAmount(raw, p)
		var validation *ValidationError
		require.ErrorAs(t, err, &validation, raw)
		require.Equal(t, "amount", validation.Field)
	}
}

func TestParseAmountBoundsExponent(t *testing.T) {
	p := entity.DefaultWithdrawalPolicy()
	for _, raw := range []string{"1e-2000000000", "1e-20000000", "1e2000000000", "100.001", "1e16"} {
		start := time.Now()
		_, err := parseAmount(raw, p)
		require.Less(t, time.Since(start), 100*time.Millisecond, raw)
		var validation *ValidationError
		require.ErrorAs(t, err, &validation, raw)
		require.Equal(t, "amount", validation.Field)
	}

	for _, raw := range []string{"100.00", "1e3", "49999.99"} {
		_, err := parseAmount(raw, p)
		require.NoError(t, err, raw)
	}
}

func TestValidSecret(t *testing.T) {
	require.True(t, validSecret("0000"))
	require.True(t, validSecret("9876"))
	require.False(t, validSecret("123"))
	require.False(t, validSecret("12345"))
	require.False(t, validSecret("12a4"))
	require.False(t, validSecret("١٢٣٤"))
}
