package registry

import "github.com/ethereum/go-ethereum/common"

// Mainnet returns the default mainnet token table. The native asset has no
// contract address; its balance and transfers go through native value.
func Mainnet() *Registry {
	configs := []TokenConfig{
		{
			Symbol:        "ETH",
			Decimals:      18,
			DisplaySymbol: "ETH",
			LogoRef:       "eth.svg",
			PriceFeedID:   "ethereum",
		},
		{
			Symbol:        "WETH",
			Address:       common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
			Decimals:      18,
			DisplaySymbol: "WETH",
			LogoRef:       "weth.svg",
			PriceFeedID:   "weth",
		},
		{
			Symbol:        "USDC",
			Address:       common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
			Decimals:      6,
			DisplaySymbol: "USDC",
			LogoRef:       "usdc.svg",
			PriceFeedID:   "usd-coin",
		},
		{
			Symbol:        "USDT",
			Address:       common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
			Decimals:      6,
			DisplaySymbol: "USDT",
			LogoRef:       "usdt.svg",
			PriceFeedID:   "tether",
		},
		{
			Symbol:        "DAI",
			Address:       common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"),
			Decimals:      18,
			DisplaySymbol: "DAI",
			LogoRef:       "dai.svg",
			PriceFeedID:   "dai",
		},
		{
			Symbol:        "WBTC",
			Address:       common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"),
			Decimals:      8,
			DisplaySymbol: "WBTC",
			LogoRef:       "wbtc.svg",
			PriceFeedID:   "wrapped-bitcoin",
		},
		{
			Symbol:        "LINK",
			Address:       common.HexToAddress("0x514910771AF9Ca656af840dff83E8264EcF986CA"),
			Decimals:      18,
			DisplaySymbol: "LINK",
			LogoRef:       "link.svg",
			PriceFeedID:   "chainlink",
		},
		{
			Symbol:        "UNI",
			Address:       common.HexToAddress("0x1f9840a85d5aF5bf1D1762F925BDADdC4201F984"),
			Decimals:      18,
			DisplaySymbol: "UNI",
			LogoRef:       "uni.svg",
			PriceFeedID:   "uniswap",
		},
		{
			Symbol:        "SHIB",
			Address:       common.HexToAddress("0x95aD61b0a150d79219dCF64E1E6Cc01f0B64C4cE"),
			Decimals:      18,
			DisplaySymbol: "SHIB",
			LogoRef:       "shib.svg",
			PriceFeedID:   "shiba-inu",
		},
		{
			Symbol:        "PEPE",
			Address:       common.HexToAddress("0x6982508145454Ce325dDbE47a25d4ec3d2311933"),
			Decimals:      18,
			DisplaySymbol: "PEPE",
			LogoRef:       "pepe.svg",
			PriceFeedID:   "pepe",
		},
	}

	r, err := New("ETH", "WETH", configs)
	if err != nil {
		// static table, cannot fail
		panic(err)
	}
	return r
}
