package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"multiswap/internal/allocation"
	"multiswap/internal/deeplink"
	"multiswap/internal/pricefeed"
	"multiswap/internal/registry"
	"multiswap/internal/simulate"
	"multiswap/internal/txparams"
)

func loadEnv() {
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	_ = godotenv.Load(filepath.Join(projectRoot, ".env"))
}

func main() {
	loadEnv()

	sellTok := flag.String("sell", "ETH", "sell token symbol (e.g. ETH)")
	amt := flag.String("amt", "0", "sell amount in human units (e.g. 0.5)")
	outList := flag.String("out", "", "comma-separated output token symbols (e.g. USDC,DAI)")
	weightList := flag.String("weights", "", "comma-separated weights matching -out (e.g. 60,40)")
	mode := flag.String("mode", "ratio", "ratio | percentage")
	link := flag.String("link", "", "deep link query string; overrides -sell/-out/-weights")
	offline := flag.Bool("offline", false, "skip price fetching, print params only")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	reg := registry.Mainnet()
	model := allocation.New()
	sell := strings.ToUpper(*sellTok)
	amount, err := decimal.NewFromString(*amt)
	if err != nil || amount.IsNegative() {
		fmt.Println("invalid -amt (must be a non-negative decimal)")
		os.Exit(2)
	}

	if *link != "" {
		l, err := deeplink.Decode(*link)
		if err != nil {
			fmt.Println("invalid -link:", err)
			os.Exit(2)
		}
		if err := l.Apply(model); err != nil {
			fmt.Println("invalid -link:", err)
			os.Exit(2)
		}
		sell = l.SellToken
		amount = l.SellAmount
	} else {
		m, err := allocation.ParseMode(*mode)
		if err != nil {
			fmt.Println("invalid -mode (use ratio|percentage)")
			os.Exit(2)
		}
		if err := model.SetMode(m); err != nil {
			fmt.Println("failed to set mode:", err)
			os.Exit(1)
		}

		outs := splitArg(*outList)
		weights := splitArg(*weightList)
		if len(outs) == 0 {
			fmt.Println("missing -out (e.g. -out USDC,DAI)")
			os.Exit(2)
		}
		if len(weights) != 0 && len(weights) != len(outs) {
			fmt.Println("-weights must match -out")
			os.Exit(2)
		}
		for i, tok := range outs {
			if i > 0 && !model.AddSlot() {
				fmt.Println("too many outputs (max 4)")
				os.Exit(2)
			}
			if err := model.SetSlotToken(i, strings.ToUpper(tok)); err != nil {
				fmt.Println("invalid output token:", err)
				os.Exit(2)
			}
		}
		for i, w := range weights {
			if err := model.SetSlotWeight(i, w); err != nil {
				fmt.Println("invalid weight:", err)
				os.Exit(2)
			}
		}
	}

	percents := model.DerivedPercentages()
	var legs []simulate.Leg
	for i, slot := range model.Slots() {
		if slot.Token == "" {
			continue
		}
		legs = append(legs, simulate.Leg{SlotIndex: i, Token: slot.Token, Percent: percents[i]})
		fmt.Printf("slot %d: %s %s%%\n", i, slot.Token, percents[i].StringFixed(2))
	}

	if !*offline {
		feed := pricefeed.NewClient(os.Getenv("PRICE_FEED_BASE_URL"), os.Getenv("PRICE_FEED_API_KEY"))
		prices := map[string]decimal.Decimal{}
		for _, sym := range append([]string{sell}, tokensOf(legs)...) {
			cfg, err := reg.Get(sym)
			if err != nil || cfg.PriceFeedID == "" {
				continue
			}
			q, err := feed.FetchPrice(ctx, cfg.PriceFeedID)
			if err != nil {
				fmt.Printf("price fetch failed for %s: %v\n", sym, err)
				continue
			}
			prices[sym] = decimal.NewFromFloat(q.PriceUsd)
		}

		outputs := simulate.Estimate(sell, amount, legs, func(token string) (decimal.Decimal, bool) {
			p, ok := prices[token]
			return p, ok
		})
		for _, out := range outputs {
			if out.Unpriced {
				fmt.Printf("estimate %s: unpriced\n", out.Token)
				continue
			}
			fmt.Printf("estimate %s: %s (~$%s)\n", out.Token, out.Amount.StringFixed(6), out.UsdValue.StringFixed(2))
		}
	}

	builder := txparams.NewBuilder(reg)
	params, err := builder.Build(sell, amount, model, 0)
	if err != nil {
		fmt.Println("failed to build params:", err)
		os.Exit(1)
	}

	enc, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		fmt.Println("failed to encode params:", err)
		os.Exit(1)
	}
	fmt.Println(string(enc))
	fmt.Println("link:", deeplink.Encode(deeplink.FromModel(sell, amount, model)))
}

func splitArg(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func tokensOf(legs []simulate.Leg) []string {
	out := make([]string, 0, len(legs))
	for _, l := range legs {
		out = append(out, l.Token)
	}
	return out
}
