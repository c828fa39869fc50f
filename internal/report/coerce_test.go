package report

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want time.Time
	}{
		{"iso", "2025-10-28 09:30:00", time.Date(2025, 10, 28, 9, 30, 0, 0, time.UTC)},
		{"iso date", "2025-10-28", time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC)},
		{"day first", "03/11/2025", time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)},
		{"day first 12h", "28/10/2025 2:15 pm", time.Date(2025, 10, 28, 14, 15, 0, 0, time.UTC)},
		{"month name", "28 Oct 2025", time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC)},
		{"excel serial", 45958.5, time.Date(2025, 10, 28, 12, 0, 0, 0, time.UTC)},
		{"excel serial string", "45958", time.Date(2025, 10, 28, 0, 0, 0, 0, time.UTC)},
		{"excel serial before 1954", 18429.0, time.Date(1950, 6, 15, 0, 0, 0, 0, time.UTC)},
		{"excel serial 1900", "367", time.Date(1901, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"time value", time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, degraded := coerce(TypeTimestamp, tt.raw)
			require.False(t, degraded)
			got, ok := v.(time.Time)
			require.True(t, ok, "got %T", v)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestCoerceTimestampDegradesToNull(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		degraded bool
	}{
		{"empty", "", false},
		{"blank", "   ", false},
		{"nil", nil, false},
		{"garbage", "not a date", true},
		{"epoch seconds", "1730000000", true},
		{"negative serial", -5.0, true},
		{"serial past 2200", 109575.0, true},
		{"zero", 0.0, true},
		{"year zero", "0000-01-01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, degraded := coerce(TypeTimestamp, tt.raw)
			assert.Nil(t, v)
			assert.Equal(t, tt.degraded, degraded)
		})
	}
}

func TestCoerceNumbers(t *testing.T) {
	t.Run("integer", func(t *testing.T) {
		cases := map[any]any{
			"30":      int64(30),
			"30 mins": int64(30),
			45.0:      int64(45),
			"1,200":   int64(1200),
			"12.5":    nil,
			12.5:      nil,
			"abc":     nil,
		}
		for raw, want := range cases {
			got, _ := coerce(TypeInteger, raw)
			assert.Equal(t, want, got, "raw %v", raw)
		}
	})

	t.Run("integer bounds", func(t *testing.T) {
		cases := map[float64]any{
			float64(1 << 53):  int64(1 << 53),
			float64(1 << 62):  int64(1 << 62),
			float64(1 << 63):  nil,
			float64(-1 << 63): int64(-1 << 63),
			float64(1 << 64):  nil,
		}
		for raw, want := range cases {
			got, _ := coerce(TypeInteger, raw)
			assert.Equal(t, want, got, "raw %v", raw)
		}
	})

	t.Run("decimal", func(t *testing.T) {
		got, degraded := coerce(TypeDecimal, "$1,234.50")
		require.False(t, degraded)
		assert.True(t, decimal.RequireFromString("1234.5").Equal(got.(decimal.Decimal)))

		got, _ = coerce(TypeDecimal, "(12.00)")
		assert.True(t, decimal.NewFromInt(-12).Equal(got.(decimal.Decimal)))

		got, _ = coerce(TypeDecimal, 99.95)
		assert.True(t, decimal.RequireFromString("99.95").Equal(got.(decimal.Decimal)))

		got, degraded = coerce(TypeDecimal, "n/a")
		assert.Nil(t, got)
		assert.True(t, degraded)
	})
}

func TestCoerceText(t *testing.T) {
	v, degraded := coerce(TypeText, "")
	assert.Nil(t, v)
	assert.False(t, degraded)

	v, _ = coerce(TypeText, "  Dr Smith ")
	assert.Equal(t, "Dr Smith", v)

	v, _ = coerce(TypeText, 412.0)
	assert.Equal(t, "412", v)

	v, _ = coerce(TypeText, true)
	assert.Equal(t, "true", v)
}

func TestCoerceIdentifier(t *testing.T) {
	cases := map[any]any{
		"123456":   "123456",
		"123456.0": "123456",
		123456.0:   "123456",
		"A-17.0":   "A-17.0",
		"12.50":    "12.50",
		"":         nil,
	}
	for raw, want := range cases {
		got, _ := coerce(TypeIdentifier, raw)
		assert.Equal(t, want, got, "raw %v", raw)
	}
}
