// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package api

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslayer/depositbridge/coordinator"
	"github.com/crosslayer/depositbridge/feeoracle"
	"github.com/crosslayer/depositbridge/messenger"
	"github.com/crosslayer/depositbridge/store"
	"github.com/crosslayer/depositbridge/vault"
)

var (
	owner     = common.HexToAddress("0x7700000000000000000000000000000000000001")
	consumer  = common.HexToAddress("0x7700000000000000000000000000000000000002")
	coordAddr = common.HexToAddress("0x7700000000000000000000000000000000000003")
	token     = common.HexToAddress("0x7700000000000000000000000000000000000004")
	mapped    = common.HexToAddress("0x7700000000000000000000000000000000000005")
	depositor = common.HexToAddress("0x7700000000000000000000000000000000000006")
	recipient = common.HexToAddress("0x7700000000000000000000000000000000000007")
)

func newTestAPI(t *testing.T) (*API, *coordinator.Coordinator, *time.Time) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Unix(1_700_000_000, 0)
	msgr, err := messenger.New(db, messenger.Config{
		Owner:              owner,
		SettlementConsumer: consumer,
		MaxProcessingTime:  time.Hour,
		CancelTimeDelta:    time.Minute,
		Clock:              func() time.Time { return now },
	}, nil)
	require.NoError(t, err)
	require.NoError(t, msgr.Authorize(coordAddr, owner))

	ledger := vault.NewLedger()
	ledger.Mint(token, depositor, big.NewInt(1000))
	coord := coordinator.New(coordinator.Config{
		Owner:      owner,
		Self:       coordAddr,
		DestBridge: common.HexToAddress("0x7700000000000000000000000000000000000008"),
	}, msgr, feeoracle.Static{Credit: big.NewInt(0)},
		vault.NewLedgerVault(ledger, coordAddr))
	require.NoError(t, coord.RegisterTokenMapping(token, mapped, owner))

	a := New(msgr, coord)
	t.Cleanup(a.Close)
	return a, coord, &now
}

func deposit(t *testing.T, coord *coordinator.Coordinator) common.Hash {
	t.Helper()
	hash, err := coord.Deposit(coordinator.DepositParams{
		Token:              token,
		DestRecipient:      recipient,
		Amount:             big.NewInt(10),
		FeeRefundRecipient: recipient,
		DestGasLimit:       big.NewInt(21000),
	}, depositor, big.NewInt(0))
	require.NoError(t, err)
	return hash
}

func TestMessageLookupAndAccessors(t *testing.T) {
	a, coord, _ := newTestAPI(t)
	hash := deposit(t, coord)

	res := a.Message(hash)
	require.NotNil(t, res)
	assert.Equal(t, uint64(0), res.Nonce)
	assert.Equal(t, "erc20", res.DepositType)
	assert.False(t, res.Cancelled)

	assert.Equal(t, uint64(1), a.NextNonce())
	assert.Equal(t, 1, a.QueueSize())
	assert.True(t, a.IsQueued(hash))
	assert.Equal(t, []common.Hash{hash}, a.Pending(5))
	assert.Nil(t, a.Message(common.HexToHash("0x01")))
	assert.Equal(t, mapped, a.TokenMapping(token))
}

func TestCancellationEvictsCachedRecord(t *testing.T) {
	a, coord, clock := newTestAPI(t)
	hash := deposit(t, coord)

	// Warm the cache with the live record.
	require.False(t, a.Message(hash).Cancelled)

	*clock = clock.Add(2 * time.Hour)
	require.NoError(t, coord.CancelDeposit(hash, depositor, nil))

	// The eviction is delivered on the messenger's feed.
	assert.Eventually(t, func() bool {
		return a.Message(hash).Cancelled
	}, time.Second, 10*time.Millisecond)
}
