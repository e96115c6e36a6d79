// Package model holds the typed records carried by the trading feed and the
// tolerant decoders that build them from raw JSON.
package model

import "encoding/json"

// Category identifies which feed channel a record came from.
type Category string

const (
	CategoryPulse   Category = "pulse"
	CategoryXHR     Category = "xhr"
	CategoryNewPair Category = "new_pair"
)

// DevWalletFunding describes how a developer wallet was funded before pair creation.
type DevWalletFunding struct {
	WalletAddress        string
	FundingWalletAddress string
	Signature            string
	AmountSol            float64
	FundedAt             string
}

// ProtocolDetails describes the on-chain protocol accounts of a pair.
type ProtocolDetails struct {
	Creator          string
	IsTokenSideX     *bool
	TokenProgram     *string
	PairSolAccount   *string
	PairTokenAccount *string

	// Pump V1
	Global                 *string
	FeeRecipient           *string
	AssociatedBondingCurve *string
	EventAuthority         *string
	IsOffchain             *bool
}

// Provenance is the part of a record the filter policy looks at.
// A nil DevWalletFunding means funding data was absent from the record.
type Provenance struct {
	DevAddress       string
	DevWalletFunding *DevWalletFunding
}

// Origin returns the provenance of the record.
func (p Provenance) Origin() Provenance { return p }

// Record is implemented by every record kind that the address policy can judge.
type Record interface {
	Origin() Provenance
}

// PulseUpdateItem is one positional item of an update_pulse_v2 message.
type PulseUpdateItem struct {
	Provenance

	PairAddress     string
	TokenAddress    string
	TokenName       string
	TokenTicker     string
	TokenImage      *string
	TokenDecimals   int64
	Protocol        string
	ProtocolDetails *ProtocolDetails
	Website         *string
	Twitter         *string
	Telegram        *string
	Discord         *string

	Top10HoldersPercent float64
	DevHoldsPercent     float64
	SnipersHoldPercent  float64
	InsidersHoldPercent float64
	BundlersHoldPercent float64

	VolumeSol      float64
	MarketCapSol   float64
	FeesSol        float64
	LiquiditySol   float64
	LiquidityToken float64

	NumTxns             int64
	NumBuys             int64
	NumSells            int64
	BondingCurvePercent float64
	Supply              float64
	NumHolders          int64
	NumTradingBotUsers  int64

	MigratedDate         *string
	Extra                json.RawMessage
	Field32              json.RawMessage
	MigratedTokens       *int64
	FirstMintDate        *string
	Field35              json.RawMessage
	TwitterHandleHistory []json.RawMessage
	Field37              json.RawMessage
	DexPaid              bool
	KolCount             int64
	DevTokens            *int64
	Field42              json.RawMessage
}

// XHRPulseResponse is one item of a /pulse query response.
type XHRPulseResponse struct {
	Provenance

	PairAddress     string
	TokenAddress    string
	TokenName       string
	TokenTicker     string
	TokenImage      *string
	TokenDecimals   int64
	Protocol        string
	ProtocolDetails *ProtocolDetails
	Website         *string
	Twitter         *string
	Telegram        *string
	Discord         *string

	Top10HoldersPercent float64
	DevHoldsPercent     float64
	DevPairCount        int64
	SnipersHoldPercent  float64
	InsidersHoldPercent float64
	BundlersHoldPercent float64

	VolumeSol           float64
	MarketCapSol        float64
	FeesSol             float64
	LiquiditySol        float64
	LiquidityToken      float64
	BondingCurvePercent float64
	Supply              float64

	NumTxns            int64
	NumBuys            int64
	NumSells           int64
	NumHolders         int64
	NumTradingBotUsers int64

	CreatedAt            string
	Extra                json.RawMessage
	DexPaid              bool
	MigrationCount       int64
	TwitterHandleHistory []json.RawMessage
	OpenTrading          string
	KolCount             int64
}

// NewPairContent is the content of a new_pairs announcement.
type NewPairContent struct {
	PairAddress           string
	Signature             string
	TokenAddress          string
	TokenName             string
	TokenTicker           string
	TokenImage            *string
	TokenURI              string
	TokenDecimals         int64
	PairSolAccount        string
	PairTokenAccount      string
	Protocol              string
	ProtocolDetails       *ProtocolDetails
	CreatedAt             string
	Website               *string
	Twitter               *string
	Telegram              *string
	Discord               *string
	MintAuthority         *string
	OpenTrading           string
	DeployerAddress       string
	Supply                float64
	InitialLiquiditySol   float64
	InitialLiquidityToken float64
	Top10Holders          float64
	LpBurned              float64
	UpdatedAt             string
	DevHoldsPercent       float64
	SnipersHoldPercent    float64
	FreezeAuthority       *string
	Extra                 json.RawMessage
	Slot                  int64
}
