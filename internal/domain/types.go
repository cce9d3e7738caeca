package domain

import "time"

// MarketType identifies which slice of the ticker universe a scan covers.
type MarketType string

const (
	MarketEquity  MarketType = "equity"
	MarketIndex   MarketType = "index"
	MarketFutures MarketType = "futures"
)

// AllMarketTypes lists the scannable markets in rotation order.
var AllMarketTypes = []MarketType{MarketEquity, MarketIndex, MarketFutures}

// Valid reports whether mt is a known market type.
func (mt MarketType) Valid() bool {
	switch mt {
	case MarketEquity, MarketIndex, MarketFutures:
		return true
	}
	return false
}

// Strategy identifies the income strategy an opportunity is priced for.
type Strategy string

const (
	StrategyCashSecuredPut Strategy = "csp"
	StrategyCoveredCall    Strategy = "covered-call"
)

// ContractType is the option right: call or put.
type ContractType string

const (
	ContractCall ContractType = "call"
	ContractPut  ContractType = "put"
)

// DataQuality flags how trustworthy the priced inputs were.
// Quoted means a live two-sided quote, LastTrade means we fell back to the
// last trade print, Estimated means no usable market data existed and the
// premium is a heuristic. Estimated results must never be presented as live.
type DataQuality string

const (
	QualityQuoted    DataQuality = "quoted"
	QualityLastTrade DataQuality = "last-trade"
	QualityEstimated DataQuality = "estimated"
)

// Greeks carries the provider-supplied option greeks. All fields are
// optional; zero values mean "not supplied".
type Greeks struct {
	Delta float64 `json:"delta,omitempty"`
	Gamma float64 `json:"gamma,omitempty"`
	Theta float64 `json:"theta,omitempty"`
	Vega  float64 `json:"vega,omitempty"`
}

// Quote is the live market state of a single contract.
type Quote struct {
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Volume       int64   `json:"volume"`
	OpenInterest int64   `json:"open_interest"`
	IV           float64 `json:"iv,omitempty"`
	Greeks       *Greeks `json:"greeks,omitempty"`
}

// OptionContract identifies a derivative and its quote snapshot. Contracts
// are refetched on every scan cycle and never mutated in place.
type OptionContract struct {
	Ticker     string       `json:"ticker"` // OCC-style contract ticker, e.g. O:AAPL251219P00220000
	Underlying string       `json:"underlying"`
	Strike     float64      `json:"strike"`
	Expiration time.Time    `json:"expiration"`
	Type       ContractType `json:"type"`
	Quote      Quote        `json:"quote"`
}

// Underlying is a tradable symbol with its most recent price. Ephemeral:
// refetched per scan, never persisted.
type Underlying struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// Opportunity is the derived record the scanner produces. ROI is expressed
// as a percentage of the capital the strategy ties up: strike*100 for a
// cash-secured put, underlying*100 for a covered call.
type Opportunity struct {
	Symbol       string       `json:"symbol"`
	Contract     string       `json:"contract"`
	Strategy     Strategy     `json:"strategy"`
	Type         ContractType `json:"type"`
	Strike       float64      `json:"strike"`
	Expiration   time.Time    `json:"expiration"`
	DTE          int          `json:"dte"`
	Premium      float64      `json:"premium"`
	Capital      float64      `json:"capital"`
	ROI          float64      `json:"roi"`
	ROIPerDay    float64      `json:"roi_per_day"`
	ROIAnnual    float64      `json:"roi_annualized"`
	PoP          float64      `json:"pop"`
	Distance     float64      `json:"distance"`
	Breakeven    float64      `json:"breakeven"`
	StockPrice   float64      `json:"stock_price"`
	Bid          float64      `json:"bid"`
	Ask          float64      `json:"ask"`
	Volume       int64        `json:"volume"`
	OpenInterest int64        `json:"open_interest"`
	IV           float64      `json:"iv,omitempty"`
	Greeks       *Greeks      `json:"greeks,omitempty"`
	DataQuality  DataQuality  `json:"data_quality"`
}
