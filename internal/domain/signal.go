package domain

const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// Signal is one trading recommendation in the feed.
type Signal struct {
	Symbol    string  `json:"symbol"`
	Action    string  `json:"action"`
	Price     float64 `json:"price"`
	Target    float64 `json:"target"`
	Stoploss  float64 `json:"stoploss"`
	Timestamp string  `json:"timestamp"`
}

// Instrument is a tracked symbol with its reference price.
type Instrument struct {
	Symbol    string
	BasePrice float64
}

// DefaultInstruments is the fixed universe the mock feed covers.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Symbol: "NIFTY", BasePrice: 21500},
		{Symbol: "BANKNIFTY", BasePrice: 45200},
		{Symbol: "RELIANCE", BasePrice: 2450},
		{Symbol: "TCS", BasePrice: 3650},
		{Symbol: "INFY", BasePrice: 1550},
		{Symbol: "HDFCBANK", BasePrice: 1650},
		{Symbol: "ICICIBANK", BasePrice: 950},
		{Symbol: "SBIN", BasePrice: 580},
		{Symbol: "WIPRO", BasePrice: 450},
		{Symbol: "TATAMOTORS", BasePrice: 780},
		{Symbol: "LT", BasePrice: 3200},
		{Symbol: "BAJFINANCE", BasePrice: 6800},
		{Symbol: "MARUTI", BasePrice: 11500},
		{Symbol: "KOTAKBANK", BasePrice: 1750},
		{Symbol: "ITC", BasePrice: 420},
		{Symbol: "BHARTIARTL", BasePrice: 1250},
		{Symbol: "AXISBANK", BasePrice: 1050},
		{Symbol: "SUNPHARMA", BasePrice: 1480},
		{Symbol: "HINDUNILVR", BasePrice: 2350},
		{Symbol: "ASIANPAINT", BasePrice: 2900},
	}
}
