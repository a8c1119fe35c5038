package pricefeed

// Quote is one fetched price point for a feed id.
type Quote struct {
	PriceUsd     float64
	MarketCapUsd float64
}

type simplePrice struct {
	Usd          float64 `json:"usd"`
	UsdMarketCap float64 `json:"usd_market_cap"`
}
