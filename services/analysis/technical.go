package analysis

import (
	"math"

	"btc_tracker_backend/models"

	talib "github.com/markcheno/go-talib"
)

// Indicator windows, matching the columns the tracker persists.
const (
	SMAShortWindow  = 50
	SMAMidWindow    = 100
	SMALongWindow   = 200
	EMAFastWindow   = 20
	EMAShortWindow  = 50
	EMAMidWindow    = 100
	EMALongWindow   = 200
	RSIWindow       = 14
	StochRSIWindow  = 14
	StochRSISmooth  = 3
	BBWindow        = 20
	BBDeviation     = 2.0
	IchimokuConvW   = 9
	IchimokuBaseW   = 26
	IchimokuSpanBW  = 52
	DonchianWindow  = 20
	MACDFastWindow  = 12
	MACDSlowWindow  = 26
	MACDSignalW     = 9
	DefaultHDPRMA   = 50
	DefaultHDPRPct  = 3.0
)

// Fibonacci retracement ratios applied to the window's high-low range.
var fibRatios = []float64{0.236, 0.382, 0.5, 0.618}

// Engine computes the full metric set over an ordered candle window.
// Compute is a pure function of the window contents: smoothed metrics (EMA,
// stochastic smoothing, the MACD signal line) depend on their own prior
// values, so the whole window is recomputed end to end on every cycle rather
// than only the tail. The window is bounded, so a full pass stays cheap.
type Engine struct {
	hdprWindow    int
	hdprThreshold float64
}

// NewEngine creates an indicator engine. hdprWindow is the mean-reversion
// moving-average length, hdprThreshold the band width in percent.
func NewEngine(hdprWindow int, hdprThreshold float64) *Engine {
	if hdprWindow <= 0 {
		hdprWindow = DefaultHDPRMA
	}
	if hdprThreshold <= 0 {
		hdprThreshold = DefaultHDPRPct
	}
	return &Engine{hdprWindow: hdprWindow, hdprThreshold: hdprThreshold}
}

// Compute recalculates every metric for every row of the window. The input
// must be ascending by timestamp. Metrics whose warm-up window is not yet
// satisfied at a row are NaN in that row's MetricSet.
func (e *Engine) Compute(candles []models.Candle) []models.MetricSet {
	n := len(candles)
	metrics := make([]models.MetricSet, n)
	if n == 0 {
		return metrics
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	sma50 := rollingSeries(talib.Sma, closes, SMAShortWindow)
	sma100 := rollingSeries(talib.Sma, closes, SMAMidWindow)
	sma200 := rollingSeries(talib.Sma, closes, SMALongWindow)

	ema20 := rollingSeries(talib.Ema, closes, EMAFastWindow)
	ema50 := rollingSeries(talib.Ema, closes, EMAShortWindow)
	ema100 := rollingSeries(talib.Ema, closes, EMAMidWindow)
	ema200 := rollingSeries(talib.Ema, closes, EMALongWindow)

	// RSI needs one extra row for the first price change.
	rsi := nanSeries(n)
	if n > RSIWindow {
		rsi = nanWarmup(talib.Rsi(closes, RSIWindow), RSIWindow)
	}
	stochRSI, stochK, stochD := stochRSISeries(rsi)

	bbHigh, bbLow := nanSeries(n), nanSeries(n)
	if n >= BBWindow {
		upper, _, lower := talib.BBands(closes, BBWindow, BBDeviation, BBDeviation, talib.SMA)
		bbHigh = nanWarmup(upper, BBWindow-1)
		bbLow = nanWarmup(lower, BBWindow-1)
	}

	conv := midChannel(highs, lows, IchimokuConvW)
	base := midChannel(highs, lows, IchimokuBaseW)
	spanB := midChannel(highs, lows, IchimokuSpanBW)

	donHigh := rollingSeries(talib.Max, highs, DonchianWindow)
	donLow := rollingSeries(talib.Min, lows, DonchianWindow)

	macdLookback := MACDSlowWindow + MACDSignalW - 2
	macdLine, macdSignal, macdHist := nanSeries(n), nanSeries(n), nanSeries(n)
	if n > macdLookback {
		line, signal, hist := talib.Macd(closes, MACDFastWindow, MACDSlowWindow, MACDSignalW)
		macdLine = nanWarmup(line, macdLookback)
		macdSignal = nanWarmup(signal, macdLookback)
		macdHist = nanWarmup(hist, macdLookback)
	}

	hdprMA := rollingSeries(talib.Sma, closes, e.hdprWindow)

	// Retracement levels are a single snapshot of the whole current window's
	// extremes, repeated on every row. New extrema entering the window shift
	// them for subsequent writes; rows persisted earlier keep the values they
	// were written with.
	windowLow, windowHigh := lows[0], highs[0]
	for i := 1; i < n; i++ {
		if lows[i] < windowLow {
			windowLow = lows[i]
		}
		if highs[i] > windowHigh {
			windowHigh = highs[i]
		}
	}
	diff := windowHigh - windowLow

	for i := 0; i < n; i++ {
		m := &metrics[i]

		m.SMA50, m.SMA100, m.SMA200 = sma50[i], sma100[i], sma200[i]
		m.EMA20, m.EMA50, m.EMA100, m.EMA200 = ema20[i], ema50[i], ema100[i], ema200[i]

		m.RSI = rsi[i]
		m.StochRSI, m.StochRSIK, m.StochRSID = stochRSI[i], stochK[i], stochD[i]

		m.BBHigh, m.BBLow = bbHigh[i], bbLow[i]

		m.IchimokuConversion = conv[i]
		m.IchimokuBase = base[i]
		m.IchimokuA = (conv[i] + base[i]) / 2
		m.IchimokuB = spanB[i]

		m.DonchianHigh = donHigh[i]
		m.DonchianLow = donLow[i]
		m.DonchianMid = (donHigh[i] + donLow[i]) / 2

		m.Fib236 = windowHigh - fibRatios[0]*diff
		m.Fib382 = windowHigh - fibRatios[1]*diff
		m.Fib500 = windowHigh - fibRatios[2]*diff
		m.Fib618 = windowHigh - fibRatios[3]*diff
		m.Fib100 = windowLow

		m.MoonCycle = MoonPhaseLabel(candles[i].Timestamp)

		m.HDPRMA = hdprMA[i]
		m.HDPRDistance = (closes[i] - hdprMA[i]) / hdprMA[i]
		// Strict inequalities: a distance exactly at the threshold is no signal.
		switch {
		case m.HDPRDistance > e.hdprThreshold/100:
			m.HDPRSignal = -1
		case m.HDPRDistance < -e.hdprThreshold/100:
			m.HDPRSignal = 1
		default:
			m.HDPRSignal = 0
		}

		m.MACDLine = macdLine[i]
		m.MACDSignal = macdSignal[i]
		m.MACDHistogram = macdHist[i]
	}

	return metrics
}

// nanWarmup marks the leading lookback rows of a ta-lib series as undefined.
// ta-lib leaves zeros in the warm-up region, which would be indistinguishable
// from real values.
func nanWarmup(series []float64, lookback int) []float64 {
	for i := 0; i < lookback && i < len(series); i++ {
		series[i] = math.NaN()
	}
	return series
}

// nanSeries is a fully undefined series of length n.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingSeries applies a ta-lib rolling function and marks its warm-up
// region undefined. ta-lib indexes into the first period-1 rows
// unconditionally, so a window shorter than the period must degrade to an
// all-undefined series before the call.
func rollingSeries(fn func([]float64, int) []float64, in []float64, period int) []float64 {
	if len(in) < period {
		return nanSeries(len(in))
	}
	return nanWarmup(fn(in, period), period-1)
}

// midChannel is the Ichimoku line primitive: the midpoint of the highest
// high and lowest low over the trailing window.
func midChannel(highs, lows []float64, window int) []float64 {
	if len(highs) < window {
		return nanSeries(len(highs))
	}
	hh := talib.Max(highs, window)
	ll := talib.Min(lows, window)
	out := make([]float64, len(highs))
	for i := range out {
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (hh[i] + ll[i]) / 2
	}
	return out
}

// stochRSISeries derives the stochastic oscillator of the RSI series plus its
// two smoothing stages: raw = (RSI - min) / (max - min) over the trailing
// stochastic window, %K = SMA3(raw), %D = SMA3(%K). NaN inputs propagate, so
// each stage is undefined until its full chain has warmed up.
func stochRSISeries(rsi []float64) (raw, k, d []float64) {
	n := len(rsi)
	raw = make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = math.NaN()
		if i < StochRSIWindow-1 {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		defined := true
		for j := i - StochRSIWindow + 1; j <= i; j++ {
			if math.IsNaN(rsi[j]) {
				defined = false
				break
			}
			lo = math.Min(lo, rsi[j])
			hi = math.Max(hi, rsi[j])
		}
		if !defined || hi == lo {
			continue
		}
		raw[i] = (rsi[i] - lo) / (hi - lo)
	}
	k = nanSMA(raw, StochRSISmooth)
	d = nanSMA(k, StochRSISmooth)
	return raw, k, d
}

// nanSMA is a rolling mean that stays undefined while any input in the
// trailing window is undefined.
func nanSMA(series []float64, window int) []float64 {
	out := make([]float64, len(series))
	for i := range out {
		out[i] = math.NaN()
		if i < window-1 {
			continue
		}
		sum := 0.0
		defined := true
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(series[j]) {
				defined = false
				break
			}
			sum += series[j]
		}
		if defined {
			out[i] = sum / float64(window)
		}
	}
	return out
}
