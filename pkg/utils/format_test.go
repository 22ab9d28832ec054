package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func parseUSD(s string) float64 {
	s = strings.ReplaceAll(s, ",", "")
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "$")
	v, _ := strconv.ParseFloat(s, 64)
	if negative {
		return -v
	}
	return v
}

// Property: FormatUSD groups thousands and preserves the value to the cent.
func TestFormatUSDProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^-?\$\d{1,3}(,\d{3})*\.\d{2}$`)

	properties.Property("FormatUSD uses thousands groups", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatUSD(amount)
			if !grouped.MatchString(formatted) {
				t.Logf("Invalid format for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatUSD preserves value", prop.ForAll(
		func(amount float64) bool {
			parsed := parseUSD(FormatUSD(amount))
			return math.Abs(parsed-math.Round(amount*100)/100) <= 0.01
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatPercent signs positive values", prop.ForAll(
		func(value float64) bool {
			formatted := FormatPercent(value)
			if !strings.HasSuffix(formatted, "%") {
				return false
			}
			return value <= 0 || strings.HasPrefix(formatted, "+")
		},
		gen.Float64Range(-100, 100),
	))

	properties.TestingRun(t)
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{999, "999.00"},
		{1500, "1.50K"},
		{2_500_000, "2.50M"},
		{-3_100_000_000, "-3.10B"},
		{2.9e12, "2.90T"},
	}
	for _, tt := range tests {
		if got := FormatCompact(tt.in); got != tt.want {
			t.Errorf("FormatCompact(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatVolume(512); got != "512" {
		t.Errorf("FormatVolume(512) = %q", got)
	}
}

func TestTruncateString(t *testing.T) {
	if got := TruncateString("Apple beats estimates", 10); got != "Apple b..." {
		t.Errorf("TruncateString() = %q", got)
	}
	if got := TruncateString("short", 10); got != "short" {
		t.Errorf("TruncateString() = %q", got)
	}
}

func TestMarketStatusAt(t *testing.T) {
	at := func(day, hour, minute int) time.Time {
		// October 2026: the 12th is a Monday
		return time.Date(2026, time.October, day, hour, minute, 0, 0, NewYorkLocation)
	}
	tests := []struct {
		name string
		t    time.Time
		want MarketStatus
	}{
		{"pre-market", at(12, 8, 0), MarketPreMarket},
		{"open bell", at(12, 9, 30), MarketOpen},
		{"close bell", at(12, 16, 0), MarketAfterHours},
		{"overnight", at(12, 21, 0), MarketClosed},
		{"saturday", at(17, 11, 0), MarketClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarketStatusAt(tt.t); got != tt.want {
				t.Errorf("MarketStatusAt() = %s, want %s", got, tt.want)
			}
		})
	}

	next := NextMarketOpen(at(16, 10, 0))
	if next.Weekday() != time.Monday || next.Hour() != 9 || next.Minute() != 30 {
		t.Errorf("NextMarketOpen() from Friday = %v", next)
	}
}
