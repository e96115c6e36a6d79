package model

import "github.com/tidwall/gjson"

// PulseItemSlots is the number of positional slots known in an update_pulse_v2 item.
// Shorter items are legal; longer items have their extra slots ignored.
const PulseItemSlots = 43

const (
	slotProtocolDetails  = 8
	slotDevWalletFunding = 39
)

func decodeFunding(v gjson.Result) *DevWalletFunding {
	if !nonEmptyObject(v) {
		return nil
	}
	return &DevWalletFunding{
		WalletAddress:        stringOf(v.Get("walletAddress")),
		FundingWalletAddress: stringOf(v.Get("fundingWalletAddress")),
		Signature:            stringOf(v.Get("signature")),
		AmountSol:            floatOf(v.Get("amountSol")),
		FundedAt:             stringOf(v.Get("fundedAt")),
	}
}

func decodeProtocolDetails(v gjson.Result) *ProtocolDetails {
	if !v.IsObject() {
		return nil
	}
	return &ProtocolDetails{
		Creator:                stringOf(v.Get("creator")),
		IsTokenSideX:           optBool(v.Get("isTokenSideX")),
		TokenProgram:           optString(v.Get("tokenProgram")),
		PairSolAccount:         optString(v.Get("pairSolAccount")),
		PairTokenAccount:       optString(v.Get("pairTokenAccount")),
		Global:                 optString(v.Get("global")),
		FeeRecipient:           optString(v.Get("feeRecipient")),
		AssociatedBondingCurve: optString(v.Get("associatedBondingCurve")),
		EventAuthority:         optString(v.Get("eventAuthority")),
		IsOffchain:             optBool(v.Get("isOffchain")),
	}
}

// DecodeUpdatePulseItem decodes a positional update_pulse_v2 item.
// It never fails: missing, null or mistyped slots take their defaults and a
// non-array input decodes like an empty array.
func DecodeUpdatePulseItem(raw gjson.Result) PulseUpdateItem {
	var s slots
	if raw.IsArray() {
		s = raw.Array()
	}

	return PulseUpdateItem{
		Provenance: Provenance{
			DevAddress:       stringOf(s.at(2)),
			DevWalletFunding: decodeFunding(s.at(slotDevWalletFunding)),
		},
		PairAddress:     stringOf(s.at(0)),
		TokenAddress:    stringOf(s.at(1)),
		TokenName:       stringOf(s.at(3)),
		TokenTicker:     stringOf(s.at(4)),
		TokenImage:      optString(s.at(5)),
		TokenDecimals:   intOf(s.at(6)),
		Protocol:        stringOf(s.at(7)),
		ProtocolDetails: decodeProtocolDetails(s.at(slotProtocolDetails)),
		Website:         optString(s.at(9)),
		Twitter:         optString(s.at(10)),
		Telegram:        optString(s.at(11)),
		Discord:         optString(s.at(12)),

		Top10HoldersPercent: floatOf(s.at(13)),
		DevHoldsPercent:     floatOf(s.at(14)),
		SnipersHoldPercent:  floatOf(s.at(15)),
		InsidersHoldPercent: floatOf(s.at(16)),
		BundlersHoldPercent: floatOf(s.at(17)),

		VolumeSol:      floatOf(s.at(18)),
		MarketCapSol:   floatOf(s.at(19)),
		FeesSol:        floatOf(s.at(20)),
		LiquiditySol:   floatOf(s.at(21)),
		LiquidityToken: floatOf(s.at(22)),

		NumTxns:             intOf(s.at(23)),
		NumBuys:             intOf(s.at(24)),
		NumSells:            intOf(s.at(25)),
		BondingCurvePercent: floatOf(s.at(26)),
		Supply:              floatOf(s.at(27)),
		NumHolders:          intOf(s.at(28)),
		NumTradingBotUsers:  intOf(s.at(29)),

		MigratedDate:         optString(s.at(30)),
		Extra:                opaque(s.at(31)),
		Field32:              opaque(s.at(32)),
		MigratedTokens:       optInt(s.at(33)),
		FirstMintDate:        optString(s.at(34)),
		Field35:              opaque(s.at(35)),
		TwitterHandleHistory: rawList(s.at(36)),
		Field37:              opaque(s.at(37)),
		DexPaid:              boolOf(s.at(38)),
		KolCount:             intOf(s.at(40)),
		DevTokens:            optInt(s.at(41)),
		Field42:              opaque(s.at(42)),
	}
}

// DecodeXHRResponse decodes one camelCase item of a /pulse response.
func DecodeXHRResponse(raw gjson.Result) XHRPulseResponse {
	if !raw.IsObject() {
		raw = gjson.Result{}
	}
	get := raw.Get

	return XHRPulseResponse{
		Provenance: Provenance{
			DevAddress:       stringOf(get("devAddress")),
			DevWalletFunding: decodeFunding(get("devWalletFunding")),
		},
		PairAddress:     stringOf(get("pairAddress")),
		TokenAddress:    stringOf(get("tokenAddress")),
		TokenName:       stringOf(get("tokenName")),
		TokenTicker:     stringOf(get("tokenTicker")),
		TokenImage:      optString(get("tokenImage")),
		TokenDecimals:   intOf(get("tokenDecimals")),
		Protocol:        stringOf(get("protocol")),
		ProtocolDetails: decodeProtocolDetails(get("protocolDetails")),
		Website:         optString(get("website")),
		Twitter:         optString(get("twitter")),
		Telegram:        optString(get("telegram")),
		Discord:         optString(get("discord")),

		Top10HoldersPercent: floatOf(get("top10HoldersPercent")),
		DevHoldsPercent:     floatOf(get("devHoldsPercent")),
		DevPairCount:        intOf(get("devPairCount")),
		SnipersHoldPercent:  floatOf(get("snipersHoldPercent")),
		InsidersHoldPercent: floatOf(get("insidersHoldPercent")),
		BundlersHoldPercent: floatOf(get("bundlersHoldPercent")),

		VolumeSol:           floatOf(get("volumeSol")),
		MarketCapSol:        floatOf(get("marketCapSol")),
		FeesSol:             floatOf(get("feesSol")),
		LiquiditySol:        floatOf(get("liquiditySol")),
		LiquidityToken:      floatOf(get("liquidityToken")),
		BondingCurvePercent: floatOf(get("bondingCurvePercent")),
		Supply:              floatOf(get("supply")),

		NumTxns:            intOf(get("numTxns")),
		NumBuys:            intOf(get("numBuys")),
		NumSells:           intOf(get("numSells")),
		NumHolders:         intOf(get("numHolders")),
		NumTradingBotUsers: intOf(get("numTradingBotUsers")),

		CreatedAt:            stringOf(get("createdAt")),
		Extra:                opaque(get("extra")),
		DexPaid:              boolOf(get("dexPaid")),
		MigrationCount:       intOf(get("migrationCount")),
		TwitterHandleHistory: rawList(get("twitterHandleHistory")),
		OpenTrading:          stringOf(get("openTrading")),
		KolCount:             intOf(get("kolCount")),
	}
}

// DecodeNewPair decodes the snake_case content of a new_pairs announcement.
func DecodeNewPair(raw gjson.Result) NewPairContent {
	if !raw.IsObject() {
		raw = gjson.Result{}
	}
	get := raw.Get

	return NewPairContent{
		PairAddress:           stringOf(get("pair_address")),
		Signature:             stringOf(get("signature")),
		TokenAddress:          stringOf(get("token_address")),
		TokenName:             stringOf(get("token_name")),
		TokenTicker:           stringOf(get("token_ticker")),
		TokenImage:            optString(get("token_image")),
		TokenURI:              stringOf(get("token_uri")),
		TokenDecimals:         intOf(get("token_decimals")),
		PairSolAccount:        stringOf(get("pair_sol_account")),
		PairTokenAccount:      stringOf(get("pair_token_account")),
		Protocol:              stringOf(get("protocol")),
		ProtocolDetails:       decodeProtocolDetails(get("protocol_details")),
		CreatedAt:             stringOf(get("created_at")),
		Website:               optString(get("website")),
		Twitter:               optString(get("twitter")),
		Telegram:              optString(get("telegram")),
		Discord:               optString(get("discord")),
		MintAuthority:         optString(get("mint_authority")),
		OpenTrading:           stringOf(get("open_trading")),
		DeployerAddress:       stringOf(get("deployer_address")),
		Supply:                floatOf(get("supply")),
		InitialLiquiditySol:   floatOf(get("initial_liquidity_sol")),
		InitialLiquidityToken: floatOf(get("initial_liquidity_token")),
		Top10Holders:          floatOf(get("top_10_holders")),
		LpBurned:              floatOf(get("lp_burned")),
		UpdatedAt:             stringOf(get("updated_at")),
		DevHoldsPercent:       floatOf(get("dev_holds_percent")),
		SnipersHoldPercent:    floatOf(get("snipers_hold_percent")),
		FreezeAuthority:       optString(get("freeze_authority")),
		Extra:                 opaque(get("extra")),
		Slot:                  intOf(get("slot")),
	}
}

// ParseUpdatePulseItem decodes a positional item from raw JSON bytes.
func ParseUpdatePulseItem(raw []byte) PulseUpdateItem {
	return DecodeUpdatePulseItem(gjson.ParseBytes(raw))
}

// ParseXHRResponse decodes a /pulse response item from raw JSON bytes.
func ParseXHRResponse(raw []byte) XHRPulseResponse {
	return DecodeXHRResponse(gjson.ParseBytes(raw))
}

// ParseNewPair decodes new_pairs content from raw JSON bytes.
func ParseNewPair(raw []byte) NewPairContent {
	return DecodeNewPair(gjson.ParseBytes(raw))
}
