package engine

import (
	"pulsegate/pkg/config"
	"pulsegate/pkg/model"
)

// DevAddressCriterion keeps records whose developer address is in the set.
type DevAddressCriterion struct {
	addrs *config.AddressSet
}

func NewDevAddressCriterion(addrs *config.AddressSet) *DevAddressCriterion {
	return &DevAddressCriterion{addrs: addrs}
}

func (c *DevAddressCriterion) Name() string {
	return "dev_address"
}

func (c *DevAddressCriterion) Match(rec model.Record) bool {
	if c.addrs == nil {
		return false
	}
	return c.addrs.Contains(rec.Origin().DevAddress)
}

// FundingWalletCriterion keeps records whose developer wallet was funded by an
// address in the set. Records without funding data never match.
type FundingWalletCriterion struct {
	addrs *config.AddressSet
}

func NewFundingWalletCriterion(addrs *config.AddressSet) *FundingWalletCriterion {
	return &FundingWalletCriterion{addrs: addrs}
}

func (c *FundingWalletCriterion) Name() string {
	return "funding_wallet"
}

func (c *FundingWalletCriterion) Match(rec model.Record) bool {
	funding := rec.Origin().DevWalletFunding
	if funding == nil || c.addrs == nil {
		return false
	}
	return c.addrs.Contains(funding.FundingWalletAddress)
}
