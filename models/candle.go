package models

import (
	"math"
	"time"
)

// Candle is one hour's aggregated OHLCV data for the tracked pair.
// Timestamp is truncated to the top of the hour, UTC, and is the unique
// key of the persisted document.
type Candle struct {
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Open      float64   `bson:"Open" json:"Open"`
	High      float64   `bson:"High" json:"High"`
	Low       float64   `bson:"Low" json:"Low"`
	Close     float64   `bson:"Close" json:"Close"`
	Volume    float64   `bson:"Volume" json:"Volume"`
}

// MetricSet holds every derived indicator for one candle. Field keys mirror
// the column names the tracker has always written to MongoDB. A float metric
// whose warm-up window is not yet satisfied is NaN ("undefined") and keeps
// the row out of persistence.
type MetricSet struct {
	SMA50  float64 `bson:"SMA_50" json:"SMA_50"`
	SMA100 float64 `bson:"SMA_100" json:"SMA_100"`
	SMA200 float64 `bson:"SMA_200" json:"SMA_200"`

	EMA20  float64 `bson:"EMA_20" json:"EMA_20"`
	EMA50  float64 `bson:"EMA_50" json:"EMA_50"`
	EMA100 float64 `bson:"EMA_100" json:"EMA_100"`
	EMA200 float64 `bson:"EMA_200" json:"EMA_200"`

	RSI       float64 `bson:"RSI" json:"RSI"`
	StochRSI  float64 `bson:"Stoch_RSI" json:"Stoch_RSI"`
	StochRSIK float64 `bson:"Stoch_RSI_K" json:"Stoch_RSI_K"`
	StochRSID float64 `bson:"Stoch_RSI_D" json:"Stoch_RSI_D"`

	BBHigh float64 `bson:"BB_High" json:"BB_High"`
	BBLow  float64 `bson:"BB_Low" json:"BB_Low"`

	IchimokuConversion float64 `bson:"Ichimoku_Conversion" json:"Ichimoku_Conversion"`
	IchimokuBase       float64 `bson:"Ichimoku_Base" json:"Ichimoku_Base"`
	IchimokuA          float64 `bson:"Ichimoku_A" json:"Ichimoku_A"`
	IchimokuB          float64 `bson:"Ichimoku_B" json:"Ichimoku_B"`

	DonchianHigh float64 `bson:"Donchian_High" json:"Donchian_High"`
	DonchianLow  float64 `bson:"Donchian_Low" json:"Donchian_Low"`
	DonchianMid  float64 `bson:"Donchian_Mid" json:"Donchian_Mid"`

	Fib236 float64 `bson:"Fib_0.236" json:"Fib_0.236"`
	Fib382 float64 `bson:"Fib_0.382" json:"Fib_0.382"`
	Fib500 float64 `bson:"Fib_0.5" json:"Fib_0.5"`
	Fib618 float64 `bson:"Fib_0.618" json:"Fib_0.618"`
	Fib100 float64 `bson:"Fib_1.0" json:"Fib_1.0"`

	MoonCycle string `bson:"Moon_Cycle" json:"Moon_Cycle"`

	HDPRMA       float64 `bson:"HDPR_MA" json:"HDPR_MA"`
	HDPRDistance float64 `bson:"HDPR_Distance" json:"HDPR_Distance"`
	HDPRSignal   int     `bson:"HDPR_Signal" json:"HDPR_Signal"`

	MACDLine      float64 `bson:"MACD_Line" json:"MACD_Line"`
	MACDSignal    float64 `bson:"MACD_Signal" json:"MACD_Signal"`
	MACDHistogram float64 `bson:"MACD_Histogram" json:"MACD_Histogram"`
}

// MetricValue is one named metric from the required numeric set.
type MetricValue struct {
	Name  string
	Value float64
}

// RequiredMetrics lists the numeric metrics a row must have defined before it
// may be persisted. Moon_Cycle is a calendar label and HDPR_Signal is an
// integer defaulting to 0, so neither can be undefined; both are excluded.
func (m *MetricSet) RequiredMetrics() []MetricValue {
	return []MetricValue{
		{"SMA_50", m.SMA50},
		{"SMA_100", m.SMA100},
		{"SMA_200", m.SMA200},
		{"EMA_20", m.EMA20},
		{"EMA_50", m.EMA50},
		{"EMA_100", m.EMA100},
		{"EMA_200", m.EMA200},
		{"RSI", m.RSI},
		{"Stoch_RSI", m.StochRSI},
		{"Stoch_RSI_K", m.StochRSIK},
		{"Stoch_RSI_D", m.StochRSID},
		{"BB_High", m.BBHigh},
		{"BB_Low", m.BBLow},
		{"Ichimoku_Conversion", m.IchimokuConversion},
		{"Ichimoku_Base", m.IchimokuBase},
		{"Ichimoku_A", m.IchimokuA},
		{"Ichimoku_B", m.IchimokuB},
		{"Donchian_High", m.DonchianHigh},
		{"Donchian_Low", m.DonchianLow},
		{"Donchian_Mid", m.DonchianMid},
		{"Fib_0.236", m.Fib236},
		{"Fib_0.382", m.Fib382},
		{"Fib_0.5", m.Fib500},
		{"Fib_0.618", m.Fib618},
		{"Fib_1.0", m.Fib100},
		{"HDPR_MA", m.HDPRMA},
		{"HDPR_Distance", m.HDPRDistance},
		{"MACD_Line", m.MACDLine},
		{"MACD_Signal", m.MACDSignal},
		{"MACD_Histogram", m.MACDHistogram},
	}
}

// UndefinedMetrics returns the names of required metrics that are still NaN.
func (m *MetricSet) UndefinedMetrics() []string {
	var undefined []string
	for _, mv := range m.RequiredMetrics() {
		if math.IsNaN(mv.Value) {
			undefined = append(undefined, mv.Name)
		}
	}
	return undefined
}

// Stable reports whether every required metric is defined.
func (m *MetricSet) Stable() bool {
	return len(m.UndefinedMetrics()) == 0
}

// CandleDocument is the persisted candle + metrics row, keyed by timestamp.
// Stored flat, matching the historical document shape.
type CandleDocument struct {
	Candle    `bson:",inline"`
	MetricSet `bson:",inline"`
}
