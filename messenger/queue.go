// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package messenger

import "github.com/ethereum/go-ethereum/common"

// hashQueue is the ordered ring of pending deposit hashes. Order is
// submission order and is never changed by anything except popping
// from the front and removing a cancelled entry in place.
//
// Not safe for concurrent use; the messenger serializes access.
type hashQueue struct {
	items   []common.Hash
	members map[common.Hash]struct{}
}

func newHashQueue() *hashQueue {
	return &hashQueue{
		members: make(map[common.Hash]struct{}),
	}
}

func (q *hashQueue) Size() int {
	return len(q.items)
}

func (q *hashQueue) Contains(hash common.Hash) bool {
	_, ok := q.members[hash]
	return ok
}

func (q *hashQueue) Push(hash common.Hash) {
	q.items = append(q.items, hash)
	q.members[hash] = struct{}{}
}

// PopFront removes and returns up to count hashes from the front, the
// oldest first. Callers are expected to have checked the size.
func (q *hashQueue) PopFront(count int) []common.Hash {
	if count > len(q.items) {
		count = len(q.items)
	}
	popped := make([]common.Hash, count)
	copy(popped, q.items[:count])
	q.items = append(q.items[:0], q.items[count:]...)
	for _, h := range popped {
		delete(q.members, h)
	}
	return popped
}

// Remove deletes the entry matching hash wherever it sits, keeping the
// relative order of everything else. Returns false if absent.
func (q *hashQueue) Remove(hash common.Hash) bool {
	if !q.Contains(hash) {
		return false
	}
	for i, h := range q.items {
		if h == hash {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	delete(q.members, hash)
	return true
}

// Snapshot returns a copy of the current contents, front first.
func (q *hashQueue) Snapshot() []common.Hash {
	out := make([]common.Hash, len(q.items))
	copy(out, q.items)
	return out
}

// restore replaces the contents, used when loading persisted state.
func (q *hashQueue) restore(hashes []common.Hash) {
	q.items = append(q.items[:0], hashes...)
	q.members = make(map[common.Hash]struct{}, len(hashes))
	for _, h := range hashes {
		q.members[h] = struct{}{}
	}
}
