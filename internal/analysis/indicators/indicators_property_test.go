package indicators

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"marketminds/internal/models"
)

// candleGen generates valid candle data with realistic OHLCV values
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Timestamp": gen.TimeRange(time.Now().Add(-365*24*time.Hour), time.Hour),
		"Open":      gen.Float64Range(100.0, 1000.0),
		"High":      gen.Float64Range(100.0, 1000.0),
		"Low":       gen.Float64Range(100.0, 1000.0),
		"Close":     gen.Float64Range(100.0, 1000.0),
		"Volume":    gen.Int64Range(1000, 10000000),
	}).Map(normalizeCandle)
}

// normalizeCandle enforces Low <= min(Open, Close) <= max(Open, Close) <= High.
func normalizeCandle(c models.Candle) models.Candle {
	if c.Open <= 0 {
		c.Open = 100.0
	}
	if c.Close <= 0 {
		c.Close = 100.0
	}
	c.High = math.Max(c.High, math.Max(c.Open, c.Close))
	c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
	if c.Low <= 0 {
		c.Low = math.Min(c.Open, c.Close)
	}
	return c
}

// candleSliceGen generates an ascending slice of valid candles
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			candles = append(candles, normalizeCandle(models.Candle{Open: 100, High: 101, Low: 99, Close: 100, Volume: 1000}))
		}
		start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range candles {
			candles[i].Timestamp = start.AddDate(0, 0, i)
			candles[i] = normalizeCandle(candles[i])
		}
		return candles
	})
}

func flatCandles(n int, price float64) []models.Candle {
	candles := make([]models.Candle, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price, High: price, Low: price, Close: price,
			Volume: 1000,
		}
	}
	return candles
}

func TestProperty_SupportBelowClosesBelowResistance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	// Property: For any non-empty window, support <= every close <= resistance.
	properties.Property("closes lie between support and resistance", prop.ForAll(
		func(candles []models.Candle) bool {
			result, err := NewCalculator().Compute(context.Background(), candles)
			if err != nil {
				return false
			}
			for _, c := range candles {
				if c.Close < result.Support || c.Close > result.Resistance {
					return false
				}
			}
			return true
		},
		candleSliceGen(1, 80),
	))

	properties.TestingRun(t)
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	// Property: RSI is NaN for the first 14 samples and within [0, 100] after.
	properties.Property("RSI values are within [0, 100]", prop.ForAll(
		func(candles []models.Candle) bool {
			values, err := NewRSI(RSIPeriod).Calculate(candles)
			if err != nil {
				return false
			}
			for i, v := range values {
				if i < RSIPeriod {
					if !math.IsNaN(v) {
						return false
					}
					continue
				}
				if math.IsNaN(v) {
					continue
				}
				if v < 0 || v > 100 {
					return false
				}
			}
			return true
		},
		candleSliceGen(1, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_TrendRequiresLongWindow(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	// Property: Windows shorter than the long SMA never report a trend.
	properties.Property("short windows are undetermined", prop.ForAll(
		func(candles []models.Candle) bool {
			result, err := NewCalculator().Compute(context.Background(), candles)
			if err != nil {
				return false
			}
			if len(candles) < LongSMAPeriod {
				return result.Trend == TrendUndetermined
			}
			return result.Trend == TrendBullish || result.Trend == TrendBearish
		},
		candleSliceGen(1, 70),
	))

	properties.TestingRun(t)
}

func TestRSIConstantSeriesUndefined(t *testing.T) {
	candles := flatCandles(30, 150)

	values, err := NewRSI(RSIPeriod).Calculate(candles)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	for i, v := range values {
		if !math.IsNaN(v) {
			t.Fatalf("values[%d] = %v, want NaN for a flat series", i, v)
		}
	}

	result, err := NewCalculator().Compute(context.Background(), candles)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if result.RSI != nil {
		t.Errorf("RSI = %v, want nil", *result.RSI)
	}
	if result.Support != 150 || result.Resistance != 150 {
		t.Errorf("levels = %v/%v, want 150/150", result.Support, result.Resistance)
	}
}

func TestRSIOnlyGains(t *testing.T) {
	candles := flatCandles(20, 100)
	for i := range candles {
		candles[i].Close = 100 + float64(i)
	}
	values, err := NewRSI(RSIPeriod).Calculate(candles)
	if err != nil {
		t.Fatal(err)
	}
	if got := values[len(values)-1]; got != 100 {
		t.Errorf("RSI = %v, want 100", got)
	}
}

func TestRSIKnownValue(t *testing.T) {
	// Alternating +2/-1 deltas: 7 gains of 2 and 7 losses of 1 in the last 14.
	candles := flatCandles(15, 100)
	price := 100.0
	for i := 1; i < len(candles); i++ {
		if i%2 == 1 {
			price += 2
		} else {
			price -= 1
		}
		candles[i].Close = price
	}
	values, err := NewRSI(RSIPeriod).Calculate(candles)
	if err != nil {
		t.Fatal(err)
	}
	want := 100 - 100/(1+2.0)
	if got := values[14]; math.Abs(got-want) > 1e-9 {
		t.Errorf("RSI = %v, want %v", got, want)
	}
}

func TestComputeTrendAndSignals(t *testing.T) {
	// Steadily rising closes and volumes over 60 sessions.
	candles := flatCandles(60, 100)
	for i := range candles {
		p := 100 + float64(i)
		candles[i].Open, candles[i].Close = p, p
		candles[i].High, candles[i].Low = p+1, p-1
		candles[i].Volume = int64(1000 + 10*i)
	}

	result, err := NewCalculator().Compute(context.Background(), candles)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if result.Trend != TrendBullish {
		t.Errorf("Trend = %s, want bullish", result.Trend)
	}
	if result.Momentum != MomentumPositive {
		t.Errorf("Momentum = %s, want positive", result.Momentum)
	}
	if result.VolumeTrend != VolumeIncreasing {
		t.Errorf("VolumeTrend = %s, want increasing", result.VolumeTrend)
	}
	if result.Support != 99 || result.Resistance != 160 {
		t.Errorf("levels = %v/%v, want 99/160", result.Support, result.Resistance)
	}

	// Reverse the series for the opposite picture.
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	result, err = NewCalculator().Compute(context.Background(), candles)
	if err != nil {
		t.Fatal(err)
	}
	if result.Trend != TrendBearish || result.Momentum != MomentumNegative || result.VolumeTrend != VolumeDecreasing {
		t.Errorf("reversed result = %+v", result)
	}
}

func TestComputeEmpty(t *testing.T) {
	if _, err := NewCalculator().Compute(context.Background(), nil); err != ErrInsufficientData {
		t.Errorf("Compute(nil) error = %v, want ErrInsufficientData", err)
	}
}

func TestVolumeTrendSkipsZeroBase(t *testing.T) {
	changes := PctChange([]float64{0, 100, 50}, 1)
	if !math.IsNaN(changes[1]) {
		t.Errorf("change from zero = %v, want NaN", changes[1])
	}
	if got := VolumeTrend(changes); got != VolumeDecreasing {
		t.Errorf("VolumeTrend = %s, want decreasing", got)
	}
	if got := VolumeTrend(nil); got != VolumeDecreasing {
		t.Errorf("VolumeTrend(nil) = %s, want decreasing", got)
	}
}

func TestVolatility(t *testing.T) {
	candles := flatCandles(3, 100)
	candles[1].Close = 110 // +10%
	candles[2].Close = 99  // -10%
	// sample std of {0.1, -0.1} = 0.1414...
	want := math.Sqrt(0.02) * 100
	if got := Volatility(candles); math.Abs(got-want) > 1e-9 {
		t.Errorf("Volatility = %v, want %v", got, want)
	}
	if got := Volatility(candles[:1]); got != 0 {
		t.Errorf("Volatility(single) = %v, want 0", got)
	}
}

func TestEngineListIndicators(t *testing.T) {
	c := NewCalculator()
	names := c.engine.ListIndicators()
	want := []string{"RSI_14", "SMA_20", "SMA_50", "VOLUME_CHANGE"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("ListIndicators() = %v, want %v", names, want)
	}
}
