package pricing

import (
	"errors"

	"stayvibe/internal/domain/shared/money"
)

var (
	ErrNoNights        = errors.New("pricing: nights must be positive")
	ErrUnknownType     = errors.New("pricing: unknown payment type")
	ErrCurrencyUnset   = errors.New("pricing: currency must be defined")
	ErrDepositNegative = errors.New("pricing: fixed deposit cannot be negative")
)

type PaymentType string

const (
	PayDeposit PaymentType = "DEPOSIT"
	PayFull    PaymentType = "FULL"
)

func (t PaymentType) Valid() bool {
	return t == PayDeposit || t == PayFull
}

// Quote is the full payment state of one booking draft. It is recomputed
// wholesale whenever nights or the payment type change; individual fields
// are never patched, which is what makes drift after a reload detectable.
type Quote struct {
	Nights         int
	FullAmount     money.Money
	DepositAmount  money.Money
	BalanceAmount  money.Money
	PaymentType    PaymentType
	AmountToPayNow money.Money
}

// Calculator prices stays at a flat nightly rate with a fixed deposit.
type Calculator struct {
	NightlyRate  money.Money
	FixedDeposit money.Money
}

func NewCalculator(nightlyRate, fixedDeposit money.Money) (Calculator, error) {
	if nightlyRate.Currency == "" || fixedDeposit.Currency == "" {
		return Calculator{}, ErrCurrencyUnset
	}
	if fixedDeposit.Amount < 0 {
		return Calculator{}, ErrDepositNegative
	}
	return Calculator{NightlyRate: nightlyRate, FixedDeposit: fixedDeposit}, nil
}

// Quote is pure and deterministic: no I/O, no clock, same inputs same
// structure. The balance is clamped at zero when the stay is cheaper than
// the deposit. A FULL quote pays everything now but still records the same
// deposit/balance split for downstream accounting.
func (c Calculator) Quote(nights int, paymentType PaymentType) (Quote, error) {
	if nights <= 0 {
		return Quote{}, ErrNoNights
	}
	if !paymentType.Valid() {
		return Quote{}, ErrUnknownType
	}

	full := c.NightlyRate.Multiply(int64(nights))
	deposit := c.FixedDeposit
	balance, err := full.SubFloor(deposit)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		Nights:        nights,
		FullAmount:    full,
		DepositAmount: deposit,
		BalanceAmount: balance,
		PaymentType:   paymentType,
	}
	switch paymentType {
	case PayFull:
		q.AmountToPayNow = full
	case PayDeposit:
		q.AmountToPayNow = deposit
	}
	return q, nil
}
