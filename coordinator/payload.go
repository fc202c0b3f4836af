// Copyright 2024 The depositbridge Authors
// SPDX-License-Identifier: LGPL-3.0-only

package coordinator

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DepositPayload is the destination-domain notification body. The
// destination handler consumes all of it; cancellation only needs the
// origin token, the depositor and the amount back out.
type DepositPayload struct {
	OriginToken        common.Address
	MappedToken        common.Address
	Depositor          common.Address
	Recipient          common.Address
	FeeRefundRecipient common.Address
	Amount             *big.Int
	Extra              []byte
}

var payloadArguments = abi.Arguments{
	{Name: "originToken", Type: mustNewType("address")},
	{Name: "mappedToken", Type: mustNewType("address")},
	{Name: "depositor", Type: mustNewType("address")},
	{Name: "recipient", Type: mustNewType("address")},
	{Name: "feeRefundRecipient", Type: mustNewType("address")},
	{Name: "amount", Type: mustNewType("uint256")},
	{Name: "extra", Type: mustNewType("bytes")},
}

func mustNewType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return ty
}

var errMalformedPayload = errors.New("coordinator: malformed deposit payload")

// Encode packs the payload ABI-style for the destination handler.
func (p *DepositPayload) Encode() ([]byte, error) {
	amount := p.Amount
	if amount == nil {
		amount = new(big.Int)
	}
	extra := p.Extra
	if extra == nil {
		extra = []byte{}
	}
	return payloadArguments.Pack(p.OriginToken, p.MappedToken, p.Depositor,
		p.Recipient, p.FeeRefundRecipient, amount, extra)
}

// DecodeDepositPayload recovers the payload from a stored message. It
// must accept exactly what Encode produced; the refund path depends on
// this pair agreeing byte for byte with the messenger's record.
func DecodeDepositPayload(data []byte) (*DepositPayload, error) {
	values, err := payloadArguments.Unpack(data)
	if err != nil {
		return nil, err
	}
	if len(values) != 7 {
		return nil, errMalformedPayload
	}
	p := new(DepositPayload)
	var ok bool
	if p.OriginToken, ok = values[0].(common.Address); !ok {
		return nil, errMalformedPayload
	}
	if p.MappedToken, ok = values[1].(common.Address); !ok {
		return nil, errMalformedPayload
	}
	if p.Depositor, ok = values[2].(common.Address); !ok {
		return nil, errMalformedPayload
	}
	if p.Recipient, ok = values[3].(common.Address); !ok {
		return nil, errMalformedPayload
	}
	if p.FeeRefundRecipient, ok = values[4].(common.Address); !ok {
		return nil, errMalformedPayload
	}
	if p.Amount, ok = values[5].(*big.Int); !ok {
		return nil, errMalformedPayload
	}
	if p.Extra, ok = values[6].([]byte); !ok {
		return nil, errMalformedPayload
	}
	return p, nil
}

// splitRouterData strips the depositor prefix a router prepends to the
// extra data when depositing on someone's behalf.
func splitRouterData(data []byte) (common.Address, []byte, error) {
	if len(data) < common.AddressLength {
		return common.Address{}, nil, ErrMalformedRouterData
	}
	return common.BytesToAddress(data[:common.AddressLength]), data[common.AddressLength:], nil
}
