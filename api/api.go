// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package api is the read-only RPC surface over the messenger and the
// coordinator. Nothing here mutates bridge state.
package api

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	lru "github.com/hashicorp/golang-lru"

	"github.com/crosslayer/depositbridge/bridgelog"
	"github.com/crosslayer/depositbridge/coordinator"
	"github.com/crosslayer/depositbridge/messenger"
	"github.com/crosslayer/depositbridge/types"
)

const recordCacheSize = 512

// MessageResult is the JSON shape of one deposit record.
type MessageResult struct {
	Hash          common.Hash    `json:"hash"`
	Sender        common.Address `json:"sender"`
	Target        common.Address `json:"target"`
	Value         *big.Int       `json:"value"`
	Nonce         uint64         `json:"nonce"`
	GasLimit      *big.Int       `json:"gasLimit"`
	ExpiryTime    uint64         `json:"expiryTime"`
	Cancelled     bool           `json:"cancelled"`
	RefundAddress common.Address `json:"refundAddress"`
	DepositType   string         `json:"depositType"`
	Payload       []byte         `json:"payload"`
}

// API exposes the bridge's read accessors. Hot record lookups go
// through an LRU cache; cancellations evict their entry so a cached
// record is never stale.
type API struct {
	messenger   *messenger.Messenger
	coordinator *coordinator.Coordinator
	cache       *lru.Cache

	cancelSub chan messenger.CancelledEvent
	sub       event.Subscription
}

func New(m *messenger.Messenger, c *coordinator.Coordinator) *API {
	cache, _ := lru.New(recordCacheSize)
	a := &API{
		messenger:   m,
		coordinator: c,
		cache:       cache,
		cancelSub:   make(chan messenger.CancelledEvent, 16),
	}
	a.sub = m.SubscribeCancelled(a.cancelSub)
	go func() {
		for ev := range a.cancelSub {
			a.cache.Remove(ev.Hash)
		}
	}()
	return a
}

// Close stops the cache eviction loop.
func (a *API) Close() {
	a.sub.Unsubscribe()
	close(a.cancelSub)
}

// APIs wraps the service for registration on an rpc server.
func (a *API) APIs() []rpc.API {
	return []rpc.API{{
		Namespace: "bridge",
		Version:   "1.0",
		Service:   a,
		Public:    true,
	}}
}

// Message returns the record for hash, nil if none exists.
func (a *API) Message(hash common.Hash) *MessageResult {
	if cached, ok := a.cache.Get(hash); ok {
		return cached.(*MessageResult)
	}
	msg := a.messenger.Message(hash)
	if !msg.Exists() {
		return nil
	}
	res := toResult(hash, msg)
	a.cache.Add(hash, res)
	return res
}

func toResult(hash common.Hash, msg *types.DepositMessage) *MessageResult {
	return &MessageResult{
		Hash:          hash,
		Sender:        msg.Sender,
		Target:        msg.Target,
		Value:         msg.Value,
		Nonce:         msg.Nonce,
		GasLimit:      msg.GasLimit,
		ExpiryTime:    msg.ExpiryTime,
		Cancelled:     msg.Cancelled,
		RefundAddress: msg.RefundAddress,
		DepositType:   msg.DepositType.String(),
		Payload:       msg.Payload,
	}
}

// NextNonce returns the nonce the next submission will receive.
func (a *API) NextNonce() uint64 {
	return a.messenger.NextNonce()
}

// QueueSize returns the number of pending deposit hashes.
func (a *API) QueueSize() int {
	return a.messenger.QueueSize()
}

// Pending returns up to count queued hashes, oldest first, without
// popping them.
func (a *API) Pending(count int) []common.Hash {
	return a.messenger.PendingPrefix(count)
}

// IsQueued reports whether hash still awaits draining.
func (a *API) IsQueued(hash common.Hash) bool {
	return a.messenger.IsQueued(hash)
}

// Submitters returns the authorized-submitter set.
func (a *API) Submitters() []common.Address {
	return a.messenger.Submitters()
}

// TokenMapping returns the destination counterpart of an origin token,
// or the zero address if unmapped.
func (a *API) TokenMapping(origin common.Address) common.Address {
	dest, ok := a.coordinator.TokenMapping(origin)
	if !ok {
		bridgelog.Warn("token mapping queried for unmapped token", "origin", origin)
	}
	return dest
}
