// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package feeoracle prices destination-domain execution in origin
// value. The coordinator consults it, never owns it.
package feeoracle

import "math/big"

// FeeOracle maps a requested gas budget and fee-market parameters to
// the fee credit a deposit must carry. Implementations are pure and
// total: any nonnegative inputs yield a result, never an error.
type FeeOracle interface {
	ComputeFeeCredit(gasLimit, maxFeePerGas, maxPriorityFeePerGas *big.Int) *big.Int
}

// GasMarketOracle prices against a configured base fee, EIP-1559
// style: the effective price is min(maxFeePerGas, baseFee+priority)
// and the credit is gasLimit times that price.
type GasMarketOracle struct {
	baseFee *big.Int
}

func NewGasMarketOracle(baseFee *big.Int) *GasMarketOracle {
	if baseFee == nil {
		baseFee = new(big.Int)
	}
	return &GasMarketOracle{baseFee: new(big.Int).Set(baseFee)}
}

func (o *GasMarketOracle) ComputeFeeCredit(gasLimit, maxFeePerGas, maxPriorityFeePerGas *big.Int) *big.Int {
	gasLimit = orZero(gasLimit)
	maxFeePerGas = orZero(maxFeePerGas)
	maxPriorityFeePerGas = orZero(maxPriorityFeePerGas)

	effective := new(big.Int).Add(o.baseFee, maxPriorityFeePerGas)
	if maxFeePerGas.Cmp(effective) < 0 {
		effective = maxFeePerGas
	}
	return new(big.Int).Mul(gasLimit, effective)
}

// Static always charges the same credit, regardless of parameters.
// Useful for tests and fixed-price deployments.
type Static struct {
	Credit *big.Int
}

func (s Static) ComputeFeeCredit(_, _, _ *big.Int) *big.Int {
	return new(big.Int).Set(orZero(s.Credit))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
