package models

import "time"

// MarketData 市场数据
type MarketData struct {
	Symbol         string    `json:"symbol"`
	Price          float64   `json:"price"`
	Bid            float64   `json:"bid"`
	Ask            float64   `json:"ask"`
	Volume24h      float64   `json:"volume_24h"`
	PriceChange24h float64   `json:"price_change_24h"`
	Timestamp      time.Time `json:"timestamp"`
}

// Spread returns the bid/ask spread, or zero when either side is missing.
func (m *MarketData) Spread() float64 {
	if m.Bid <= 0 || m.Ask <= 0 {
		return 0
	}
	return m.Ask - m.Bid
}
