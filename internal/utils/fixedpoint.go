package utils

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

// DecPrecision is the number of fractional digits of every fixed point value.
const DecPrecision = 18

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
)

var decScale = sdkmath.NewIntWithDecimal(1, DecPrecision)

// DecScale returns 10^18 as an Int.
func DecScale() sdkmath.Int { return decScale }

// Atomics returns the scaled integer behind a fixed point value (d * 10^18).
func Atomics(d sdkmath.LegacyDec) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(d.BigInt())
}

// DecFromAtomics is the inverse of Atomics.
func DecFromAtomics(atomics sdkmath.Int) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDecFromIntWithPrec(atomics, DecPrecision)
}

func Add(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeAdd(b)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %s + %s", ErrOverflow, a, b)
	}
	return res, nil
}

func Sub(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeSub(b)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %s - %s", ErrOverflow, a, b)
	}
	return res, nil
}

func Mul(a, b sdkmath.Int) (sdkmath.Int, error) {
	res, err := a.SafeMul(b)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %s * %s", ErrOverflow, a, b)
	}
	return res, nil
}

func Quo(a, b sdkmath.Int) (sdkmath.Int, error) {
	if b.IsZero() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	res, err := a.SafeQuo(b)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: %s / %s", ErrOverflow, a, b)
	}
	return res, nil
}

// MulDiv returns floor(a*b/denom) for non-negative operands.
func MulDiv(a, b, denom sdkmath.Int) (sdkmath.Int, error) {
	prod, err := Mul(a, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return Quo(prod, denom)
}

// MulDivCeil returns ceil(a*b/denom) for non-negative operands.
func MulDivCeil(a, b, denom sdkmath.Int) (sdkmath.Int, error) {
	prod, err := Mul(a, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return QuoCeil(prod, denom)
}

// QuoCeil returns ceil(a/b) for non-negative operands.
func QuoCeil(a, b sdkmath.Int) (sdkmath.Int, error) {
	q, err := Quo(a, b)
	if err != nil {
		return sdkmath.Int{}, err
	}
	if q.Mul(b).Equal(a) {
		return q, nil
	}
	return Add(q, sdkmath.OneInt())
}

// MulDec returns floor(amount * d).
func MulDec(amount sdkmath.Int, d sdkmath.LegacyDec) (sdkmath.Int, error) {
	return MulDiv(amount, Atomics(d), decScale)
}

// QuoDec returns floor(amount / d).
func QuoDec(amount sdkmath.Int, d sdkmath.LegacyDec) (sdkmath.Int, error) {
	if !d.IsPositive() {
		return sdkmath.Int{}, ErrDivisionByZero
	}
	return MulDiv(amount, decScale, Atomics(d))
}

// MulDecs multiplies two fixed point values, truncating.
func MulDecs(a, b sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	atoms, err := MulDiv(Atomics(a), Atomics(b), decScale)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return DecFromAtomics(atoms), nil
}

// QuoDecs divides two fixed point values, truncating.
func QuoDecs(a, b sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if !b.IsPositive() {
		return sdkmath.LegacyDec{}, ErrDivisionByZero
	}
	atoms, err := MulDiv(Atomics(a), decScale, Atomics(b))
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return DecFromAtomics(atoms), nil
}

// SqrtDec returns floor(sqrt(d)) at 18 decimals. Exact integer arithmetic, so the
// result is bit-identical on every machine.
func SqrtDec(d sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if d.IsNegative() {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: sqrt of %s", ErrAmountNegative, d)
	}
	radicand, err := Mul(Atomics(d), decScale)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	root := new(big.Int).Sqrt(radicand.BigInt())
	return DecFromAtomics(sdkmath.NewIntFromBigInt(root)), nil
}
