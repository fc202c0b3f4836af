// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package messenger keeps the authoritative, ordered ledger of pending
// deposit notifications between the origin and destination domains. It
// owns the nonce counter, the hash-keyed registry, the FIFO queue and
// the authorized-submitter set; the coordinator mutates them only
// through the operations here.
package messenger

import (
	"errors"
	"math/big"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/crosslayer/depositbridge/bridgelog"
	"github.com/crosslayer/depositbridge/store"
	"github.com/crosslayer/depositbridge/types"
)

var (
	ErrUnauthorized         = errors.New("messenger: caller is not authorized")
	ErrAlreadyExists        = errors.New("messenger: deposit message already exists")
	ErrNotFound             = errors.New("messenger: no deposit message for hash")
	ErrAlreadyCancelled     = errors.New("messenger: deposit message already cancelled")
	ErrNotQueued            = errors.New("messenger: deposit message not in queue")
	ErrNotYetExpired        = errors.New("messenger: cancellation window not yet open")
	ErrInsufficientQueued   = errors.New("messenger: fewer queued messages than requested")
	ErrAlreadyAuthorized    = errors.New("messenger: submitter already authorized")
	ErrNotAuthorized        = errors.New("messenger: submitter not authorized")
	ErrUnsupportedSubmitter = errors.New("messenger: identity does not support submitting")
	ErrNotOwner             = errors.New("messenger: caller is not the owner")
	ErrPaused               = errors.New("messenger: submissions are paused")
)

// SubmitterVerifier reports whether an identity advertises the
// submitter capability. Consulted before an identity may be authorized.
type SubmitterVerifier interface {
	IsSubmitter(addr common.Address) bool
}

// SubmitterVerifierFunc adapts a plain function to SubmitterVerifier.
type SubmitterVerifierFunc func(addr common.Address) bool

func (f SubmitterVerifierFunc) IsSubmitter(addr common.Address) bool { return f(addr) }

// Config carries the fixed identities and timing windows.
type Config struct {
	// Owner gates the administrative surface.
	Owner common.Address
	// SettlementConsumer is the only identity Drain accepts.
	SettlementConsumer common.Address
	// MaxProcessingTime is the nominal window the settlement layer has
	// to pick a message up; submission time plus this yields ExpiryTime.
	MaxProcessingTime time.Duration
	// CancelTimeDelta is the grace period past ExpiryTime before
	// cancellation opens.
	CancelTimeDelta time.Duration
	// Clock overrides the wall clock, for tests. Nil means time.Now.
	Clock func() time.Time
}

// SubmittedEvent is posted on every accepted submission.
type SubmittedEvent struct {
	Hash    common.Hash
	Message *types.DepositMessage
}

// CancelledEvent is posted when a queued message is cancelled.
type CancelledEvent struct {
	Hash common.Hash
}

// DrainedEvent is posted when the settlement consumer pops a prefix.
type DrainedEvent struct {
	Hashes []common.Hash
}

// Messenger serializes every mutating operation behind one lock, so a
// failed operation leaves no partial state and nonce order equals
// queue order equals call order.
type Messenger struct {
	mu  sync.RWMutex
	cfg Config
	db  *store.Store
	now func() time.Time

	registry   map[common.Hash]*types.DepositMessage
	queue      *hashQueue
	nextNonce  uint64
	submitters mapset.Set
	verifier   SubmitterVerifier
	paused     bool

	submittedFeed event.Feed
	cancelledFeed event.Feed
	drainedFeed   event.Feed
	scope         event.SubscriptionScope
}

// New builds a messenger over db, reloading any persisted registry,
// queue, nonce counter and submitter set.
func New(db *store.Store, cfg Config, verifier SubmitterVerifier) (*Messenger, error) {
	m := &Messenger{
		cfg:        cfg,
		db:         db,
		now:        cfg.Clock,
		registry:   make(map[common.Hash]*types.DepositMessage),
		queue:      newHashQueue(),
		submitters: mapset.NewSet(),
		verifier:   verifier,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Messenger) load() error {
	queued, err := m.db.Queue()
	if err != nil {
		return err
	}
	m.queue.restore(queued)
	for _, hash := range queued {
		msg, err := m.db.Message(hash)
		if err != nil {
			return err
		}
		if !msg.Exists() {
			return errors.New("messenger: queued hash has no stored record")
		}
		m.registry[hash] = msg
	}
	if m.nextNonce, err = m.db.Nonce(); err != nil {
		return err
	}
	addrs, err := m.db.Submitters()
	if err != nil {
		return err
	}
	for _, addr := range addrs {
		m.submitters.Add(addr)
	}
	bridgelog.Info("messenger state loaded", "queued", m.queue.Size(),
		"nextNonce", m.nextNonce, "submitters", len(addrs))
	return nil
}

// Submit records a new deposit message, assigns it the next nonce and
// appends its hash to the queue tail. Only authorized submitters may
// call it and it is refused while paused.
func (m *Messenger) Submit(depositType types.DepositType, target common.Address, value *big.Int,
	payload []byte, gasLimit *big.Int, refundAddress common.Address, submitter common.Address) (common.Hash, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paused {
		return common.Hash{}, ErrPaused
	}
	if !m.submitters.Contains(submitter) {
		return common.Hash{}, ErrUnauthorized
	}

	msg := &types.DepositMessage{
		Sender:        submitter,
		Target:        target,
		Value:         new(big.Int).Set(value),
		Nonce:         m.nextNonce,
		GasLimit:      new(big.Int).Set(gasLimit),
		ExpiryTime:    uint64(m.now().Add(m.cfg.MaxProcessingTime).Unix()),
		RefundAddress: refundAddress,
		DepositType:   depositType,
		Payload:       append([]byte{}, payload...),
	}
	hash := msg.Hash()
	if m.lookup(hash).Exists() {
		return common.Hash{}, ErrAlreadyExists
	}

	queued := append(m.queue.Snapshot(), hash)
	if err := m.db.WriteSubmission(msg, queued, m.nextNonce+1); err != nil {
		return common.Hash{}, err
	}
	m.registry[hash] = msg
	m.queue.Push(hash)
	m.nextNonce++

	bridgelog.Info("deposit message submitted", "hash", hash, "nonce", msg.Nonce,
		"type", msg.DepositType, "target", target, "expiry", msg.ExpiryTime)
	m.submittedFeed.Send(SubmittedEvent{Hash: hash, Message: msg.Copy()})
	return hash, nil
}

// Cancel marks a queued, expired message as cancelled and removes its
// entry from the queue. The record itself stays readable forever. The
// cancellation window opens strictly after ExpiryTime+CancelTimeDelta.
// Cancel is never blocked by pausing.
func (m *Messenger) Cancel(hash common.Hash, caller common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.submitters.Contains(caller) {
		return ErrUnauthorized
	}
	msg := m.lookup(hash)
	if !msg.Exists() {
		return ErrNotFound
	}
	if msg.Cancelled {
		return ErrAlreadyCancelled
	}
	if !m.queue.Contains(hash) {
		return ErrNotQueued
	}
	if uint64(m.now().Unix()) <= msg.ExpiryTime+uint64(m.cfg.CancelTimeDelta/time.Second) {
		return ErrNotYetExpired
	}

	cancelled := msg.Copy()
	cancelled.Cancelled = true
	queued := m.queue.Snapshot()
	for i, h := range queued {
		if h == hash {
			queued = append(queued[:i], queued[i+1:]...)
			break
		}
	}
	if err := m.db.WriteCancellation(cancelled, queued); err != nil {
		return err
	}
	m.registry[hash] = cancelled
	m.queue.Remove(hash)

	bridgelog.Info("deposit message cancelled", "hash", hash, "nonce", msg.Nonce)
	m.cancelledFeed.Send(CancelledEvent{Hash: hash})
	return nil
}

// Drain pops exactly count hashes from the queue front, oldest first.
// Only the settlement consumer may call it; it is the sole normal exit
// from the queue and is never blocked by pausing.
func (m *Messenger) Drain(count int, caller common.Address) ([]common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.cfg.SettlementConsumer {
		return nil, ErrUnauthorized
	}
	if count < 0 || count > m.queue.Size() {
		return nil, ErrInsufficientQueued
	}

	queued := m.queue.Snapshot()
	remaining := queued[count:]
	if err := m.db.WriteQueue(remaining); err != nil {
		return nil, err
	}
	popped := m.queue.PopFront(count)

	bridgelog.Info("deposit messages drained", "count", count, "remaining", m.queue.Size())
	m.drainedFeed.Send(DrainedEvent{Hashes: popped})
	return popped, nil
}

// Authorize admits an identity to the submitter set after checking it
// advertises the submitter capability.
func (m *Messenger) Authorize(identity common.Address, caller common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.cfg.Owner {
		return ErrNotOwner
	}
	if m.submitters.Contains(identity) {
		return ErrAlreadyAuthorized
	}
	if m.verifier != nil && !m.verifier.IsSubmitter(identity) {
		return ErrUnsupportedSubmitter
	}
	if err := m.persistSubmitters(identity, common.Address{}); err != nil {
		return err
	}
	m.submitters.Add(identity)
	bridgelog.Info("submitter authorized", "identity", identity)
	return nil
}

// Revoke removes an identity from the submitter set.
func (m *Messenger) Revoke(identity common.Address, caller common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.cfg.Owner {
		return ErrNotOwner
	}
	if !m.submitters.Contains(identity) {
		return ErrNotAuthorized
	}
	if err := m.persistSubmitters(common.Address{}, identity); err != nil {
		return err
	}
	m.submitters.Remove(identity)
	bridgelog.Info("submitter revoked", "identity", identity)
	return nil
}

// persistSubmitters writes the prospective set with add applied and
// remove dropped. The zero address means no change.
func (m *Messenger) persistSubmitters(add, remove common.Address) error {
	addrs := make([]common.Address, 0, m.submitters.Cardinality()+1)
	for _, item := range m.submitters.ToSlice() {
		addr := item.(common.Address)
		if addr == remove {
			continue
		}
		addrs = append(addrs, addr)
	}
	if (add != common.Address{}) {
		addrs = append(addrs, add)
	}
	return m.db.WriteSubmitters(addrs)
}

// SetPaused toggles acceptance of new submissions. Draining and
// cancellation are deliberately unaffected.
func (m *Messenger) SetPaused(paused bool, caller common.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.cfg.Owner {
		return ErrNotOwner
	}
	m.paused = paused
	bridgelog.Info("messenger pause state changed", "paused", paused)
	return nil
}

// lookup finds a record in memory or, for drained and pre-restart
// entries, in the store. Records are never deleted, so a store hit is
// cached back into the registry. Callers hold the write lock.
func (m *Messenger) lookup(hash common.Hash) *types.DepositMessage {
	if msg, ok := m.registry[hash]; ok {
		return msg
	}
	msg, err := m.db.Message(hash)
	if err != nil {
		bridgelog.Error("deposit message read failed", "hash", hash, "error", err)
		return nil
	}
	if msg != nil {
		m.registry[hash] = msg
	}
	return msg
}

// NextNonce returns the nonce the next submission will receive.
func (m *Messenger) NextNonce() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nextNonce
}

// Message returns a copy of the record for hash, or nil if none.
func (m *Messenger) Message(hash common.Hash) *types.DepositMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if msg, ok := m.registry[hash]; ok {
		return msg.Copy()
	}
	// Drained or pre-restart records are no longer in memory but stay
	// readable from the store as an audit log.
	msg, err := m.db.Message(hash)
	if err != nil {
		bridgelog.Error("deposit message read failed", "hash", hash, "error", err)
		return nil
	}
	return msg
}

// QueueSize returns the number of pending hashes.
func (m *Messenger) QueueSize() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queue.Size()
}

// IsQueued reports whether hash still awaits draining.
func (m *Messenger) IsQueued(hash common.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.queue.Contains(hash)
}

// PendingPrefix returns up to count queued hashes from the front
// without popping them.
func (m *Messenger) PendingPrefix(count int) []common.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot := m.queue.Snapshot()
	if count >= 0 && count < len(snapshot) {
		snapshot = snapshot[:count]
	}
	return snapshot
}

// Submitters returns the current authorized-submitter set.
func (m *Messenger) Submitters() []common.Address {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addrs := make([]common.Address, 0, m.submitters.Cardinality())
	for _, item := range m.submitters.ToSlice() {
		addrs = append(addrs, item.(common.Address))
	}
	return addrs
}

// IsAuthorized reports membership in the submitter set.
func (m *Messenger) IsAuthorized(identity common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.submitters.Contains(identity)
}

// SubscribeSubmitted delivers a SubmittedEvent per accepted submission.
func (m *Messenger) SubscribeSubmitted(ch chan<- SubmittedEvent) event.Subscription {
	return m.scope.Track(m.submittedFeed.Subscribe(ch))
}

// SubscribeCancelled delivers a CancelledEvent per cancellation.
func (m *Messenger) SubscribeCancelled(ch chan<- CancelledEvent) event.Subscription {
	return m.scope.Track(m.cancelledFeed.Subscribe(ch))
}

// SubscribeDrained delivers a DrainedEvent per drain.
func (m *Messenger) SubscribeDrained(ch chan<- DrainedEvent) event.Subscription {
	return m.scope.Track(m.drainedFeed.Subscribe(ch))
}

// Stop unsubscribes all event listeners.
func (m *Messenger) Stop() {
	m.scope.Close()
}
