/*
This file contains conversions between SDK integers, 18-decimal fixed point values
and floats. Floats are only ever produced for observability (metrics, dashboards);
accounting code stays on integers.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// CheckAmount rejects nil and negative token amounts.
func CheckAmount(amount sdkmath.Int) error {
	if amount.IsNil() {
		return ErrAmountNil
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrAmountNegative, amount)
	}
	return nil
}

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision handling
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > DecPrecision {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if err := CheckAmount(amount); err != nil {
		return 0, err
	}

	result := sdkmath.LegacyNewDecFromIntWithPrec(amount, int64(precision))
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}

// DecToFloat64 converts a fixed point value for display.
func DecToFloat64(d sdkmath.LegacyDec) (float64, error) {
	if d.IsNil() {
		return 0, ErrAmountNil
	}
	f, err := d.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, f)
	}
	return f, nil
}

// ParseDec parses a decimal string such as "1.5" into 18-decimal fixed point.
func ParseDec(s string) (sdkmath.LegacyDec, error) {
	d, err := sdkmath.LegacyNewDecFromStr(s)
	if err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %q: %w", ErrConversionFailed, s, err)
	}
	return d, nil
}

// ParseAmount parses a base-10 token amount.
func ParseAmount(s string) (sdkmath.Int, error) {
	amount, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%w: %q is not an integer", ErrConversionFailed, s)
	}
	if err := CheckAmount(amount); err != nil {
		return sdkmath.Int{}, err
	}
	return amount, nil
}
