package polygon

// Wire shapes for the two Polygon endpoints the scanner uses:
// /v2/aggs/ticker/{symbol}/prev and /v3/snapshot/options/{symbol}.

type prevCloseResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
	} `json:"results"`
}

type chainResponse struct {
	Status  string           `json:"status"`
	Results []optionSnapshot `json:"results"`
	NextURL string           `json:"next_url"`
}

type optionSnapshot struct {
	UnderlyingAsset struct {
		Ticker string `json:"ticker"`
	} `json:"underlying_asset"`
	Details struct {
		ContractType   string  `json:"contract_type"`
		ExpirationDate string  `json:"expiration_date"`
		StrikePrice    float64 `json:"strike_price"`
		Ticker         string  `json:"ticker"`
	} `json:"details"`
	Greeks *struct {
		Delta float64 `json:"delta"`
		Gamma float64 `json:"gamma"`
		Theta float64 `json:"theta"`
		Vega  float64 `json:"vega"`
	} `json:"greeks"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	LastQuote         struct {
		Bid float64 `json:"bid"`
		Ask float64 `json:"ask"`
	} `json:"last_quote"`
	LastTrade struct {
		Price float64 `json:"price"`
	} `json:"last_trade"`
	Day struct {
		Volume float64 `json:"volume"`
	} `json:"day"`
	OpenInterest float64 `json:"open_interest"`
}
