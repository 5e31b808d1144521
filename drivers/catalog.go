/*
Copyright 2025 Cardpilot Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package drivers

import (
	"sort"

	"github.com/korelabs/cardpilot/driver"
)

// catalog is the researched provider landscape, drivers or not. Entries
// without a driver still show up in the providers listing so operators can
// see what exists; only entries marked inactive (waitlisted, withdrawn, or
// not actually a card product) are excluded from whole-catalog runs.
var catalog = map[string]driver.Info{
	DryRunProviderKey: {
		Name:       "Dry Run",
		SignupType: "builtin",
		Networks:   []string{"visa", "mastercard"},
		RiskLevel:  "none",
		Notes:      "Deterministic in-process driver for rehearsing the pipeline.",
		Active:     true,
	},

	"ezzocard": {
		Name:             "Ezzocard",
		URL:              "https://ezzocard.finance/",
		SignupType:       "web",
		Networks:         []string{"visa", "mastercard"},
		AcceptedCrypto:   []string{"BTC", "ETH", "USDT-ERC20", "USDT-TRC20", "USDT-BEP20", "USDT-SOL", "DOGE", "LTC", "TRX", "SOL", "BNB"},
		MinDepositUSD:    25,
		DenominationsUSD: []int{10, 25, 50, 100, 200, 250, 500, 1000, 2000, 5000, 10000},
		Fees:             "5-30% markup over face value",
		RiskLevel:        "medium",
		Notes:            "Oldest established provider. Both networks available.",
		Active:           true,
	},
	"solcard": {
		Name:           "SolCard",
		URL:            "https://solcard.io",
		SignupType:     "web",
		Networks:       []string{"mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT", "SOL", "LTC"},
		MinDepositUSD:  10,
		Fees:           "5% top-up, $1/month maintenance",
		RiskLevel:      "medium-high",
		Notes:          "Mastercard only. Reports of retroactive account freezes.",
		Active:         true,
	},
	"bingcard": {
		Name:           "BingCard",
		URL:            "https://bingcard.io",
		SignupType:     "web",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT", "LTC", "XMR"},
		MinDepositUSD:  5,
		Fees:           "0.5% withdrawal",
		RiskLevel:      "high",
		Notes:          "Virtual cards on both networks. Mixed reliability reports.",
		Active:         true,
	},
	"fotoncard": {
		Name:           "FotonCard",
		URL:            "https://fotoncard.com",
		SignupType:     "web",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT", "USDC"},
		MinDepositUSD:  100,
		Fees:           "3.5% top-up",
		RiskLevel:      "medium",
		Notes:          "$100 minimum deposit required to activate.",
		Active:         true,
	},
	"pstnet": {
		Name:           "PSTnet",
		URL:            "https://pst.net",
		SignupType:     "web",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT", "USDC"},
		MinDepositUSD:  25,
		Fees:           "3% cashback on ad spend",
		RiskLevel:      "medium",
		Notes:          "Built for ad/media buying. First card anonymous, additional cards gated.",
		Active:         true,
	},
	"laso": {
		Name:           "Laso Finance",
		URL:            "https://www.laso.finance",
		SignupType:     "web",
		Networks:       []string{"visa"},
		AcceptedCrypto: []string{"USDC", "USDT", "DAI"},
		MinDepositUSD:  10,
		RiskLevel:      "low-medium",
		Notes:          "Stablecoin cards. Chrome extension and mobile app.",
		Active:         true,
	},
	"linkpay": {
		Name:           "LinkPay",
		URL:            "https://linkpay.to",
		SignupType:     "web",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT"},
		MinDepositUSD:  10,
		Fees:           "3% cashback",
		RiskLevel:      "medium",
		Notes:          `Both networks under the "Omni" brand.`,
		Active:         true,
	},
	"kripicard": {
		Name:           "KripiCard",
		URL:            "https://kripicard.com",
		SignupType:     "web",
		Networks:       []string{"visa"},
		AcceptedCrypto: []string{"USDT"},
		MinDepositUSD:  10,
		RiskLevel:      "medium",
		Notes:          "USDT-funded virtual cards.",
		Active:         true,
	},
	"paywide": {
		Name:           "PayWide",
		URL:            "https://paywide.io",
		SignupType:     "web",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT"},
		RiskLevel:      "medium",
		Notes:          "Taiwan-based via Wage3/WageCan.",
		Active:         true,
	},
	"xkard": {
		Name:           "XKard",
		URL:            "https://xkard.io",
		SignupType:     "web",
		Networks:       []string{"visa"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT"},
		RiskLevel:      "high",
		Notes:          "Reports of funds frozen with forced verification.",
		Active:         true,
	},
	"plasbit": {
		Name:           "PlasBit",
		URL:            "https://plasbit.com",
		SignupType:     "web",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT", "USDC"},
		RiskLevel:      "medium",
		Notes:          "Registered in Poland. Prepaid cards often Mastercard in practice.",
		Active:         true,
	},
	"zypto": {
		Name:           "Zypto",
		URL:            "https://zypto.com",
		SignupType:     "web",
		Networks:       []string{"mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT"},
		RiskLevel:      "low-medium",
		Notes:          "Mastercard without document uploads. ZYP rewards points.",
		Active:         true,
	},
	"rewarble": {
		Name:           "Rewarble",
		URL:            "https://rewarble.com",
		SignupType:     "web",
		Networks:       []string{"mastercard"},
		AcceptedCrypto: []string{"BTC", "ETH", "USDT"},
		RiskLevel:      "low",
		Notes:          "Virtual prepaid Mastercard gift cards.",
		Active:         true,
	},
	"zeroid_cc": {
		Name:           "ZeroID CC",
		URL:            "https://t.me/ZeroID_bot",
		SignupType:     "telegram",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "LTC", "USDT"},
		RiskLevel:      "high",
		Notes:          "Telegram bot signup. Possibly a Zypto reseller.",
		Active:         true,
	},
	"trocador": {
		Name:           "Trocador",
		URL:            "https://trocador.app",
		SignupType:     "web",
		Networks:       []string{"visa", "mastercard"},
		AcceptedCrypto: []string{"BTC", "XMR", "LTC", "ETH"},
		Fees:           "2% FX",
		RiskLevel:      "medium",
		Notes:          "Aggregator. Mastercard intl up to $1K, Visa US up to $10K.",
		Active:         true,
	},

	"offgrid_cash": {
		Name:       "OffGrid Cash",
		URL:        "https://offgridcash.com",
		SignupType: "web",
		Networks:   []string{"visa"},
		RiskLevel:  "unknown",
		Notes:      "Waitlist only, not yet operational.",
		Active:     false,
	},
	"0fiat": {
		Name:       "0Fiat",
		URL:        "https://0fiat.com",
		SignupType: "none",
		RiskLevel:  "low",
		Notes:      "Browser extension for direct wallet-to-merchant payments, not a card.",
		Active:     false,
	},
}

// Catalog lists every known provider, active or not, sorted by key.
func Catalog() []driver.Info {
	keys := make([]string, 0, len(catalog))
	for key := range catalog {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]driver.Info, 0, len(keys))
	for _, key := range keys {
		out = append(out, catalogInfo(key))
	}
	return out
}

func catalogInfo(key string) driver.Info {
	info := catalog[key]
	info.ProviderKey = key
	return info
}
