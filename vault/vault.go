// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package vault is the custody seam between the coordinator and the
// asset layer. The coordinator only ever talks to the Vault and Router
// interfaces; how funds actually move is the asset layer's business.
package vault

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	ErrZeroAmount          = errors.New("vault: zero amount")
)

// Vault holds deposited assets in custody.
type Vault interface {
	// Pull moves amount of token from holder into custody and returns
	// the amount actually received, which nonstandard assets may make
	// differ from the request.
	Pull(token, holder common.Address, amount *big.Int) (*big.Int, error)
	// Release moves amount of token out of custody to recipient.
	Release(token, recipient common.Address, amount *big.Int) error
}

// Router is the optional intermediary that collects funds from the
// economic depositor before the coordinator sees the request. Invoked
// only when the deposit's immediate caller is the router itself.
type Router interface {
	// PullAsset surrenders amount of token, previously collected from
	// depositor, into custody and returns the amount moved.
	PullAsset(depositor, token common.Address, amount *big.Int) (*big.Int, error)
	// Address identifies the router on the origin domain.
	Address() common.Address
}

// Ledger is an in-process balance book keyed by token then holder. It
// backs the vault and router implementations used in tests and
// single-process deployments.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*big.Int
}

func NewLedger() *Ledger {
	return &Ledger{balances: make(map[common.Address]map[common.Address]*big.Int)}
}

// Mint credits holder with amount of token out of thin air.
func (l *Ledger) Mint(token, holder common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, holder, amount)
}

// BalanceOf returns holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if holders, ok := l.balances[token]; ok {
		if bal, ok := holders[holder]; ok {
			return new(big.Int).Set(bal)
		}
	}
	return new(big.Int)
}

// Transfer moves amount of token between holders, failing without
// effect when from cannot cover it.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	holders := l.balances[token]
	if holders == nil || holders[from] == nil || holders[from].Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	holders[from].Sub(holders[from], amount)
	l.credit(token, to, amount)
	return nil
}

func (l *Ledger) credit(token, holder common.Address, amount *big.Int) {
	holders := l.balances[token]
	if holders == nil {
		holders = make(map[common.Address]*big.Int)
		l.balances[token] = holders
	}
	if holders[holder] == nil {
		holders[holder] = new(big.Int)
	}
	holders[holder].Add(holders[holder], amount)
}

// LedgerVault custodies assets on a ledger under one custodian account.
type LedgerVault struct {
	ledger    *Ledger
	custodian common.Address
}

func NewLedgerVault(ledger *Ledger, custodian common.Address) *LedgerVault {
	return &LedgerVault{ledger: ledger, custodian: custodian}
}

func (v *LedgerVault) Pull(token, holder common.Address, amount *big.Int) (*big.Int, error) {
	if err := v.ledger.Transfer(token, holder, v.custodian, amount); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

func (v *LedgerVault) Release(token, recipient common.Address, amount *big.Int) error {
	return v.ledger.Transfer(token, v.custodian, recipient, amount)
}

// LedgerRouter fulfils PullAsset from its own ledger account, the way
// a real router surrenders funds it already collected.
type LedgerRouter struct {
	ledger    *Ledger
	addr      common.Address
	custodian common.Address
}

func NewLedgerRouter(ledger *Ledger, addr, custodian common.Address) *LedgerRouter {
	return &LedgerRouter{ledger: ledger, addr: addr, custodian: custodian}
}

func (r *LedgerRouter) PullAsset(depositor, token common.Address, amount *big.Int) (*big.Int, error) {
	if err := r.ledger.Transfer(token, r.addr, r.custodian, amount); err != nil {
		return nil, err
	}
	return new(big.Int).Set(amount), nil
}

func (r *LedgerRouter) Address() common.Address {
	return r.addr
}
