// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package store

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosslayer/depositbridge/types"
)

func testMessage(nonce uint64) *types.DepositMessage {
	return &types.DepositMessage{
		Sender:      common.HexToAddress("0x0100000000000000000000000000000000000001"),
		Target:      common.HexToAddress("0x0200000000000000000000000000000000000002"),
		Value:       big.NewInt(100),
		Nonce:       nonce,
		GasLimit:    big.NewInt(21000),
		ExpiryTime:  1234,
		DepositType: types.DepositTypeERC20,
		Payload:     []byte{1, 2, 3},
	}
}

func TestFreshStoreIsEmpty(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	msg, err := s.Message(common.HexToHash("0x01"))
	require.NoError(t, err)
	assert.Nil(t, msg)

	queue, err := s.Queue()
	require.NoError(t, err)
	assert.Empty(t, queue)

	nonce, err := s.Nonce()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), nonce)

	subs, err := s.Submitters()
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestWriteSubmissionRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	msg := testMessage(3)
	hash := msg.Hash()
	queue := []common.Hash{hash}
	require.NoError(t, s.WriteSubmission(msg, queue, 4))

	loaded, err := s.Message(hash)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, hash, loaded.Hash())
	assert.Equal(t, uint64(3), loaded.Nonce)

	gotQueue, err := s.Queue()
	require.NoError(t, err)
	assert.Equal(t, queue, gotQueue)

	nonce, err := s.Nonce()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), nonce)
}

func TestWriteCancellationFlipsRecord(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	msg := testMessage(0)
	hash := msg.Hash()
	require.NoError(t, s.WriteSubmission(msg, []common.Hash{hash}, 1))

	cancelled := msg.Copy()
	cancelled.Cancelled = true
	require.NoError(t, s.WriteCancellation(cancelled, nil))

	loaded, err := s.Message(hash)
	require.NoError(t, err)
	assert.True(t, loaded.Cancelled)

	queue, err := s.Queue()
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestSubmittersRoundTrip(t *testing.T) {
	s, err := OpenMemory()
	require.NoError(t, err)
	defer s.Close()

	addrs := []common.Address{
		common.HexToAddress("0x0300000000000000000000000000000000000003"),
		common.HexToAddress("0x0400000000000000000000000000000000000004"),
	}
	require.NoError(t, s.WriteSubmitters(addrs))

	loaded, err := s.Submitters()
	require.NoError(t, err)
	assert.ElementsMatch(t, addrs, loaded)
}
