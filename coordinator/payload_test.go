// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package coordinator

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestSplitRouterData(t *testing.T) {
	addr := common.HexToAddress("0x5500000000000000000000000000000000000001")

	got, rest, err := splitRouterData(append(addr.Bytes(), 0xaa, 0xbb))
	assert.NoError(t, err)
	assert.Equal(t, addr, got)
	assert.Equal(t, []byte{0xaa, 0xbb}, rest)

	// Exactly one address and nothing else is fine.
	got, rest, err = splitRouterData(addr.Bytes())
	assert.NoError(t, err)
	assert.Equal(t, addr, got)
	assert.Empty(t, rest)

	_, _, err = splitRouterData([]byte{0x01})
	assert.Equal(t, ErrMalformedRouterData, err)
}

func TestDecodeDepositPayloadRejectsGarbage(t *testing.T) {
	_, err := DecodeDepositPayload([]byte{0xde, 0xad, 0xbe, 0xef})
	assert.Error(t, err)
}
