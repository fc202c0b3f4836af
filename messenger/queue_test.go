// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package messenger

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func hashOf(b byte) common.Hash {
	return common.BytesToHash([]byte{b})
}

func TestQueuePushPopOrder(t *testing.T) {
	q := newHashQueue()
	for i := byte(0); i < 5; i++ {
		q.Push(hashOf(i))
	}
	assert.Equal(t, 5, q.Size())

	popped := q.PopFront(3)
	assert.Equal(t, []common.Hash{hashOf(0), hashOf(1), hashOf(2)}, popped)
	assert.Equal(t, 2, q.Size())
	assert.False(t, q.Contains(hashOf(0)))
	assert.True(t, q.Contains(hashOf(3)))
}

func TestQueueRemoveKeepsOrder(t *testing.T) {
	q := newHashQueue()
	for i := byte(0); i < 4; i++ {
		q.Push(hashOf(i))
	}

	assert.True(t, q.Remove(hashOf(2)))
	assert.False(t, q.Remove(hashOf(2)))
	assert.Equal(t, []common.Hash{hashOf(0), hashOf(1), hashOf(3)}, q.Snapshot())
}

func TestQueuePopFrontClampsToSize(t *testing.T) {
	q := newHashQueue()
	q.Push(hashOf(1))
	popped := q.PopFront(10)
	assert.Equal(t, []common.Hash{hashOf(1)}, popped)
	assert.Equal(t, 0, q.Size())
}

func TestQueueRestore(t *testing.T) {
	q := newHashQueue()
	q.Push(hashOf(9))
	q.restore([]common.Hash{hashOf(1), hashOf(2)})
	assert.Equal(t, 2, q.Size())
	assert.False(t, q.Contains(hashOf(9)))
	assert.True(t, q.Contains(hashOf(1)))
}
