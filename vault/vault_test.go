// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package vault

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tok       = common.HexToAddress("0x6600000000000000000000000000000000000001")
	alice     = common.HexToAddress("0x6600000000000000000000000000000000000002")
	bob       = common.HexToAddress("0x6600000000000000000000000000000000000003")
	custodian = common.HexToAddress("0x6600000000000000000000000000000000000004")
)

func TestLedgerTransfer(t *testing.T) {
	l := NewLedger()
	l.Mint(tok, alice, big.NewInt(100))

	require.NoError(t, l.Transfer(tok, alice, bob, big.NewInt(40)))
	assert.Equal(t, big.NewInt(60), l.BalanceOf(tok, alice))
	assert.Equal(t, big.NewInt(40), l.BalanceOf(tok, bob))

	assert.Equal(t, ErrInsufficientBalance, l.Transfer(tok, alice, bob, big.NewInt(61)))
	assert.Equal(t, ErrZeroAmount, l.Transfer(tok, alice, bob, big.NewInt(0)))
	assert.Equal(t, big.NewInt(60), l.BalanceOf(tok, alice))
}

func TestLedgerVaultPullRelease(t *testing.T) {
	l := NewLedger()
	l.Mint(tok, alice, big.NewInt(100))
	v := NewLedgerVault(l, custodian)

	pulled, err := v.Pull(tok, alice, big.NewInt(70))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(70), pulled)
	assert.Equal(t, big.NewInt(70), l.BalanceOf(tok, custodian))

	require.NoError(t, v.Release(tok, alice, big.NewInt(70)))
	assert.Equal(t, big.NewInt(100), l.BalanceOf(tok, alice))

	_, err = v.Pull(tok, alice, big.NewInt(101))
	assert.Equal(t, ErrInsufficientBalance, err)
}

func TestLedgerRouterPullsOwnBalance(t *testing.T) {
	l := NewLedger()
	router := common.HexToAddress("0x6600000000000000000000000000000000000005")
	l.Mint(tok, router, big.NewInt(50))
	r := NewLedgerRouter(l, router, custodian)

	pulled, err := r.PullAsset(alice, tok, big.NewInt(30))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(30), pulled)
	assert.Equal(t, big.NewInt(20), l.BalanceOf(tok, router))
	assert.Equal(t, big.NewInt(30), l.BalanceOf(tok, custodian))
	// The depositor's own balance is untouched on this path.
	assert.Equal(t, big.NewInt(0), l.BalanceOf(tok, alice))
}
