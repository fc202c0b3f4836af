// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"bytes"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// DepositType discriminates the handler a deposit is bound for. A
// coordinator only cancels deposits of its own type.
type DepositType uint8

const (
	DepositTypeNone DepositType = iota
	DepositTypeNative
	DepositTypeERC20
)

func (t DepositType) String() string {
	switch t {
	case DepositTypeNative:
		return "native"
	case DepositTypeERC20:
		return "erc20"
	}
	return "none"
}

// DepositMessage is one pending deposit notification between domains.
// ExpiryTime == 0 marks a record that does not exist; a stored record
// always has a nonzero expiry.
type DepositMessage struct {
	Sender        common.Address // submitter of record, possibly an intermediary
	Target        common.Address // destination-domain contact point
	Value         *big.Int       // native value carried with the message
	Nonce         uint64
	GasLimit      *big.Int // destination execution budget
	ExpiryTime    uint64   // unix seconds
	Cancelled     bool
	RefundAddress common.Address
	DepositType   DepositType
	Payload       []byte
}

// hashFields writes the identity-bearing fields in a fixed layout.
// Nonce is part of the identity, so resubmitting identical parameters
// under a fresh nonce yields a fresh hash.
func (m *DepositMessage) hashFields(w io.Writer) error {
	if _, err := w.Write(m.Sender.Bytes()); err != nil {
		return err
	}
	if _, err := w.Write(m.Target.Bytes()); err != nil {
		return err
	}
	value := m.Value
	if value == nil {
		value = new(big.Int)
	}
	if _, err := w.Write(common.BigToHash(value).Bytes()); err != nil {
		return err
	}
	var nonce [8]byte
	for i := 0; i < 8; i++ {
		nonce[7-i] = byte(m.Nonce >> (8 * i))
	}
	if _, err := w.Write(nonce[:]); err != nil {
		return err
	}
	_, err := w.Write(m.Payload)
	return err
}

// Hash returns the content address of the message. Both the messenger
// and the coordinator key their view of a deposit on this value, so it
// must never be computed any other way.
func (m *DepositMessage) Hash() common.Hash {
	w := bytes.NewBuffer([]byte{})
	if err := m.hashFields(w); err != nil {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(w.Bytes())
}

// rlp shadow type keeping the storage encoding independent of field
// additions on DepositMessage itself.
type messageRLP struct {
	Sender        common.Address
	Target        common.Address
	Value         *big.Int
	Nonce         uint64
	GasLimit      *big.Int
	ExpiryTime    uint64
	Cancelled     bool
	RefundAddress common.Address
	DepositType   uint8
	Payload       []byte
}

// EncodeRLP implements rlp.Encoder.
func (m *DepositMessage) EncodeRLP(w io.Writer) error {
	value := m.Value
	if value == nil {
		value = new(big.Int)
	}
	gasLimit := m.GasLimit
	if gasLimit == nil {
		gasLimit = new(big.Int)
	}
	return rlp.Encode(w, &messageRLP{
		Sender:        m.Sender,
		Target:        m.Target,
		Value:         value,
		Nonce:         m.Nonce,
		GasLimit:      gasLimit,
		ExpiryTime:    m.ExpiryTime,
		Cancelled:     m.Cancelled,
		RefundAddress: m.RefundAddress,
		DepositType:   uint8(m.DepositType),
		Payload:       m.Payload,
	})
}

// DecodeRLP implements rlp.Decoder.
func (m *DepositMessage) DecodeRLP(s *rlp.Stream) error {
	var dec messageRLP
	if err := s.Decode(&dec); err != nil {
		return err
	}
	m.Sender = dec.Sender
	m.Target = dec.Target
	m.Value = dec.Value
	m.Nonce = dec.Nonce
	m.GasLimit = dec.GasLimit
	m.ExpiryTime = dec.ExpiryTime
	m.Cancelled = dec.Cancelled
	m.RefundAddress = dec.RefundAddress
	m.DepositType = DepositType(dec.DepositType)
	m.Payload = dec.Payload
	return nil
}

// Exists reports whether the record was ever stored. The zero expiry
// is reserved for "no such record".
func (m *DepositMessage) Exists() bool {
	return m != nil && m.ExpiryTime > 0
}

// Copy returns a deep copy so callers cannot mutate registry state
// through a read accessor.
func (m *DepositMessage) Copy() *DepositMessage {
	if m == nil {
		return nil
	}
	cpy := *m
	if m.Value != nil {
		cpy.Value = new(big.Int).Set(m.Value)
	}
	if m.GasLimit != nil {
		cpy.GasLimit = new(big.Int).Set(m.GasLimit)
	}
	cpy.Payload = make([]byte, len(m.Payload))
	copy(cpy.Payload, m.Payload)
	return &cpy
}
