package core

import "time"

// Candle represents one row of the ordered time series with OHLCV data
type Candle struct {
	Time   time.Time
	Open   float64
	Close  float64
	Low    float64
	High   float64
	Volume float64

	// Additional columns from CSV inputs
	Metadata map[string]float64
}
