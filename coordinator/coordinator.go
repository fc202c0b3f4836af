// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

// Package coordinator validates fungible-token deposit requests end to
// end: custody sourcing, fee-credit reconciliation against the gas
// market, submission to the messenger, and the cancellation refund
// path. It never touches the messenger's registry or queue directly.
package coordinator

import (
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/crosslayer/depositbridge/bridgelog"
	"github.com/crosslayer/depositbridge/feeoracle"
	"github.com/crosslayer/depositbridge/types"
	"github.com/crosslayer/depositbridge/vault"
)

var (
	ErrInvalidToken          = errors.New("coordinator: invalid or native-wrapped token")
	ErrInvalidRecipient      = errors.New("coordinator: invalid recipient")
	ErrEmptyAmount           = errors.New("coordinator: amount must be positive")
	ErrInvalidFeeRecipient   = errors.New("coordinator: invalid fee refund recipient")
	ErrInvalidGasLimit       = errors.New("coordinator: gas limit must be positive")
	ErrUnmappedToken         = errors.New("coordinator: no destination counterpart for token")
	ErrAmountMismatch        = errors.New("coordinator: custody received a different amount")
	ErrInsufficientFeeCredit = errors.New("coordinator: attached value below required fee credit")
	ErrUnauthorizedCaller    = errors.New("coordinator: caller is neither router nor depositor")
	ErrWrongDepositType      = errors.New("coordinator: deposit is not a fungible-token deposit")
	ErrNotFound              = errors.New("coordinator: no deposit message for hash")
	ErrNotOwner              = errors.New("coordinator: caller is not the owner")
	ErrPaused                = errors.New("coordinator: deposits are paused")
	ErrMalformedRouterData   = errors.New("coordinator: router data lacks depositor prefix")
)

// DepositMessenger is the slice of the messenger the coordinator
// needs. Registry, queue and nonce stay on the other side of it.
type DepositMessenger interface {
	Submit(depositType types.DepositType, target common.Address, value *big.Int,
		payload []byte, gasLimit *big.Int, refundAddress common.Address,
		submitter common.Address) (common.Hash, error)
	Cancel(hash common.Hash, caller common.Address) error
	Message(hash common.Hash) *types.DepositMessage
}

// Config fixes the coordinator's identities at construction.
type Config struct {
	// Owner gates the administrative surface.
	Owner common.Address
	// Self is the identity the coordinator submits under; it must be
	// authorized on the messenger.
	Self common.Address
	// DestBridge is the destination-domain contact point notified of
	// every deposit.
	DestBridge common.Address
	// WrappedNative is rejected here; a separate path handles it.
	WrappedNative common.Address
}

// DepositParams is one deposit request as the depositor phrased it.
type DepositParams struct {
	Token              common.Address
	DestRecipient      common.Address
	Amount             *big.Int
	FeeRefundRecipient common.Address
	ExtraData          []byte
	DestGasLimit       *big.Int
	MaxFeePerGas       *big.Int
	MaxPriorityFee     *big.Int
}

// DepositConfirmedEvent is posted once a deposit is custodied and
// submitted.
type DepositConfirmedEvent struct {
	Hash        common.Hash
	Token       common.Address
	MappedToken common.Address
	Depositor   common.Address
	Recipient   common.Address
	Amount      *big.Int
	Payload     []byte
}

// DepositCancelledEvent is posted once a refund has been issued.
type DepositCancelledEvent struct {
	Hash      common.Hash
	Token     common.Address
	Depositor common.Address
	Amount    *big.Int
}

type Coordinator struct {
	// mu is the non-reentrant execution guard: custody callbacks run
	// inside it and cannot re-enter Deposit or CancelDeposit.
	mu  sync.Mutex
	cfg Config

	messenger DepositMessenger
	oracle    feeoracle.FeeOracle
	vault     vault.Vault
	router    vault.Router

	tokenMap map[common.Address]common.Address
	paused   bool

	depositFeed event.Feed
	cancelFeed  event.Feed
	scope       event.SubscriptionScope
}

func New(cfg Config, msgr DepositMessenger, oracle feeoracle.FeeOracle, v vault.Vault) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		messenger: msgr,
		oracle:    oracle,
		vault:     v,
		tokenMap:  make(map[common.Address]common.Address),
	}
}

// Deposit validates the request, pulls the asset into custody, checks
// the attached value covers the destination fee credit and submits the
// notification. Every failure unwinds completely: no custody movement,
// no queue mutation, no nonce consumption survive an error.
func (c *Coordinator) Deposit(params DepositParams, caller common.Address, attachedValue *big.Int) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paused {
		return common.Hash{}, ErrPaused
	}
	if params.Token == (common.Address{}) || params.Token == c.cfg.WrappedNative {
		return common.Hash{}, ErrInvalidToken
	}
	if params.DestRecipient == (common.Address{}) {
		return common.Hash{}, ErrInvalidRecipient
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return common.Hash{}, ErrEmptyAmount
	}
	if params.FeeRefundRecipient == (common.Address{}) {
		return common.Hash{}, ErrInvalidFeeRecipient
	}
	if params.DestGasLimit == nil || params.DestGasLimit.Sign() <= 0 {
		return common.Hash{}, ErrInvalidGasLimit
	}
	mapped, ok := c.tokenMap[params.Token]
	if !ok {
		return common.Hash{}, ErrUnmappedToken
	}

	depositor, extra, pulled, pullSource, err := c.pullIntoCustody(params, caller)
	if err != nil {
		return common.Hash{}, err
	}
	// From here on any failure must hand the custodied amount back.
	unwind := func() {
		if rerr := c.vault.Release(params.Token, pullSource, pulled); rerr != nil {
			bridgelog.Error("custody unwind failed", "token", params.Token,
				"to", pullSource, "amount", pulled, "error", rerr)
		}
	}
	if pulled.Cmp(params.Amount) != 0 {
		unwind()
		return common.Hash{}, ErrAmountMismatch
	}

	credit := c.oracle.ComputeFeeCredit(params.DestGasLimit, params.MaxFeePerGas, params.MaxPriorityFee)
	if attachedValue == nil || attachedValue.Cmp(credit) < 0 {
		unwind()
		return common.Hash{}, ErrInsufficientFeeCredit
	}

	payload := &DepositPayload{
		OriginToken:        params.Token,
		MappedToken:        mapped,
		Depositor:          depositor,
		Recipient:          params.DestRecipient,
		FeeRefundRecipient: params.FeeRefundRecipient,
		Amount:             params.Amount,
		Extra:              extra,
	}
	encoded, err := payload.Encode()
	if err != nil {
		unwind()
		return common.Hash{}, err
	}

	hash, err := c.messenger.Submit(types.DepositTypeERC20, c.cfg.DestBridge, attachedValue,
		encoded, params.DestGasLimit, params.FeeRefundRecipient, c.cfg.Self)
	if err != nil {
		unwind()
		return common.Hash{}, err
	}

	bridgelog.Info("deposit confirmed", "hash", hash, "token", params.Token,
		"mapped", mapped, "depositor", depositor, "amount", params.Amount)
	c.depositFeed.Send(DepositConfirmedEvent{
		Hash:        hash,
		Token:       params.Token,
		MappedToken: mapped,
		Depositor:   depositor,
		Recipient:   params.DestRecipient,
		Amount:      new(big.Int).Set(params.Amount),
		Payload:     encoded,
	})
	return hash, nil
}

// pullIntoCustody runs exactly one of the two sourcing paths: through
// the router on the depositor's behalf, or directly from the caller.
// It returns the depositor of record, the remaining extra data, the
// amount custody received and the account any unwind must repay.
func (c *Coordinator) pullIntoCustody(params DepositParams, caller common.Address) (common.Address, []byte, *big.Int, common.Address, error) {
	if c.router != nil && caller == c.router.Address() {
		depositor, extra, err := splitRouterData(params.ExtraData)
		if err != nil {
			return common.Address{}, nil, nil, common.Address{}, err
		}
		pulled, err := c.router.PullAsset(depositor, params.Token, params.Amount)
		if err != nil {
			return common.Address{}, nil, nil, common.Address{}, err
		}
		return depositor, extra, pulled, c.router.Address(), nil
	}
	pulled, err := c.vault.Pull(params.Token, caller, params.Amount)
	if err != nil {
		return common.Address{}, nil, nil, common.Address{}, err
	}
	return caller, params.ExtraData, pulled, caller, nil
}

// CancelDeposit reconstructs the original deposit from the messenger's
// record, asks the messenger to mark it cancelled and refunds the
// recovered amount of the recovered token to the recovered depositor.
// Messenger failures pass through unchanged. Never blocked by pausing.
func (c *Coordinator) CancelDeposit(hash common.Hash, caller common.Address, attachedValue *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	msg := c.messenger.Message(hash)
	if !msg.Exists() {
		return ErrNotFound
	}
	payload, err := DecodeDepositPayload(msg.Payload)
	if err != nil {
		return err
	}
	routerAddr := common.Address{}
	if c.router != nil {
		routerAddr = c.router.Address()
	}
	if caller != routerAddr && caller != payload.Depositor {
		return ErrUnauthorizedCaller
	}
	if msg.DepositType != types.DepositTypeERC20 {
		return ErrWrongDepositType
	}

	if err := c.messenger.Cancel(hash, c.cfg.Self); err != nil {
		return err
	}
	if err := c.vault.Release(payload.OriginToken, payload.Depositor, payload.Amount); err != nil {
		// The messenger has already flipped the record; a failed
		// release leaves funds in custody for a manual retry.
		bridgelog.Error("refund release failed", "hash", hash,
			"token", payload.OriginToken, "depositor", payload.Depositor, "error", err)
		return err
	}

	bridgelog.Info("deposit cancelled and refunded", "hash", hash,
		"token", payload.OriginToken, "depositor", payload.Depositor, "amount", payload.Amount)
	c.cancelFeed.Send(DepositCancelledEvent{
		Hash:      hash,
		Token:     payload.OriginToken,
		Depositor: payload.Depositor,
		Amount:    new(big.Int).Set(payload.Amount),
	})
	return nil
}

// RegisterTokenMapping records the destination counterpart for an
// origin token. Deposits of unmapped tokens are refused.
func (c *Coordinator) RegisterTokenMapping(origin, dest common.Address, caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return ErrNotOwner
	}
	c.tokenMap[origin] = dest
	bridgelog.Info("token mapping registered", "origin", origin, "dest", dest)
	return nil
}

// TokenMapping returns the destination counterpart, if registered.
func (c *Coordinator) TokenMapping(origin common.Address) (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dest, ok := c.tokenMap[origin]
	return dest, ok
}

// SetRouter replaces the custody intermediary. Nil disables the
// router path.
func (c *Coordinator) SetRouter(r vault.Router, caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return ErrNotOwner
	}
	c.router = r
	return nil
}

// SetFeeOracle replaces the fee oracle.
func (c *Coordinator) SetFeeOracle(o feeoracle.FeeOracle, caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return ErrNotOwner
	}
	c.oracle = o
	return nil
}

// SetPaused toggles acceptance of new deposits. Cancellation stays
// open while paused.
func (c *Coordinator) SetPaused(paused bool, caller common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if caller != c.cfg.Owner {
		return ErrNotOwner
	}
	c.paused = paused
	bridgelog.Info("coordinator pause state changed", "paused", paused)
	return nil
}

// SubscribeDeposits delivers a DepositConfirmedEvent per deposit.
func (c *Coordinator) SubscribeDeposits(ch chan<- DepositConfirmedEvent) event.Subscription {
	return c.scope.Track(c.depositFeed.Subscribe(ch))
}

// SubscribeCancellations delivers a DepositCancelledEvent per refund.
func (c *Coordinator) SubscribeCancellations(ch chan<- DepositCancelledEvent) event.Subscription {
	return c.scope.Track(c.cancelFeed.Subscribe(ch))
}

// Stop unsubscribes all event listeners.
func (c *Coordinator) Stop() {
	c.scope.Close()
}
