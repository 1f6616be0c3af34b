package exchange

import "github.com/arbitrage-core/arbitrage-core/internal/exchange/coinbaseauth"

// AllAdapters returns one Adapter per supported spot venue. coinbaseSigner
// may be nil, in which case the Coinbase adapter omits the jwt field from
// its subscribe payloads (the connection will be rejected by Coinbase, but
// every other venue remains usable — see spec's Configuration-error
// recovery: skip the venue, don't abort the process).
func AllAdapters(coinbaseSigner *coinbaseauth.Signer) []Adapter {
	return []Adapter{
		NewBinance(),
		NewCoinbase(coinbaseSigner),
		NewKraken(),
		NewBybit(),
		NewOKX(),
		NewGateIO(),
		NewUpbit(),
		NewBithumb(),
	}
}
