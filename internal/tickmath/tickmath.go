// Package tickmath implements the geometric-decade tick to price mapping used by
// concentrated-liquidity pools: every decade of price is split into 9,000,000
// linearly spaced ticks, and tick 0 is price 1 with an increment of 10^-6.
package tickmath

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvault/internal/utils"
)

const (
	// TicksPerDecade is the number of ticks between two powers of ten.
	TicksPerDecade int64 = 9_000_000
	// ExponentAtPriceOne fixes the price increment of one tick around price 1 (10^-6).
	ExponentAtPriceOne int64 = -6

	MinTick int64 = -108_000_000 // price 10^-12
	MaxTick int64 = 342_000_000  // price 10^38

	// MaxTickSpacing is the width of the whole tick domain. Larger spacings would
	// overflow the int64 products in RoundDown and RoundUp.
	MaxTickSpacing = uint64(MaxTick - MinTick)
)

var (
	ErrTickOutOfRange  = errors.New("tick out of range")
	ErrPriceOutOfRange = errors.New("price out of range")
	ErrInvalidSpacing  = errors.New("tick spacing must be positive and within the tick domain")
)

// PriceFromTick returns the exact price at a tick. All prices in the valid domain are
// representable at 18 decimals because the smallest increment is 10^-18.
func PriceFromTick(tick int64) (sdkmath.LegacyDec, error) {
	if tick < MinTick || tick > MaxTick {
		return sdkmath.LegacyDec{}, fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	decade := floorDiv(tick, TicksPerDecade)
	offset := tick - decade*TicksPerDecade

	// price atomics = 10^(decade+18) + offset * 10^(decade+18+ExponentAtPriceOne)
	base := sdkmath.NewIntWithDecimal(1, int(decade+utils.DecPrecision))
	step := sdkmath.NewIntWithDecimal(1, int(decade+utils.DecPrecision+ExponentAtPriceOne))
	atomics := base.Add(step.MulRaw(offset))
	return utils.DecFromAtomics(atomics), nil
}

// TickFromPrice returns the largest tick whose price is <= price.
func TickFromPrice(price sdkmath.LegacyDec) (int64, error) {
	minPrice, _ := PriceFromTick(MinTick)
	maxPrice, _ := PriceFromTick(MaxTick)
	if price.LT(minPrice) || price.GT(maxPrice) {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, price)
	}

	atomics := utils.Atomics(price)
	// number of decimal digits of the atomics gives floor(log10(price)) + 18
	decade := int64(len(atomics.String())-1) - utils.DecPrecision

	base := sdkmath.NewIntWithDecimal(1, int(decade+utils.DecPrecision))
	step := sdkmath.NewIntWithDecimal(1, int(decade+utils.DecPrecision+ExponentAtPriceOne))
	offset := atomics.Sub(base).Quo(step)
	return decade*TicksPerDecade + offset.Int64(), nil
}

// RoundDown returns the largest multiple of spacing that is <= tick.
func RoundDown(tick int64, spacing uint64) int64 {
	s := int64(spacing)
	return floorDiv(tick, s) * s
}

// RoundUp returns the smallest multiple of spacing that is >= tick.
func RoundUp(tick int64, spacing uint64) int64 {
	s := int64(spacing)
	down := floorDiv(tick, s) * s
	if down == tick {
		return tick
	}
	return down + s
}

// MinValidTick is the lowest tick usable as a position bound for spacing.
func MinValidTick(spacing uint64) int64 { return RoundUp(MinTick, spacing) }

// MaxValidTick is the highest tick usable as a position bound for spacing.
func MaxValidTick(spacing uint64) int64 { return RoundDown(MaxTick, spacing) }

// ValidateSpacing rejects a zero spacing and one wider than the tick domain.
func ValidateSpacing(spacing uint64) error {
	if spacing == 0 || spacing > MaxTickSpacing {
		return fmt.Errorf("%w: %d", ErrInvalidSpacing, spacing)
	}
	return nil
}

// ValidateRange checks that a range is aligned to spacing, inside the tick domain and
// non-empty.
func ValidateRange(lower, upper int64, spacing uint64) error {
	if err := ValidateSpacing(spacing); err != nil {
		return err
	}
	if lower >= upper {
		return fmt.Errorf("%w: lower %d >= upper %d", ErrTickOutOfRange, lower, upper)
	}
	if lower < MinValidTick(spacing) || upper > MaxValidTick(spacing) {
		return fmt.Errorf("%w: [%d, %d]", ErrTickOutOfRange, lower, upper)
	}
	s := int64(spacing)
	if lower%s != 0 || upper%s != 0 {
		return fmt.Errorf("%w: [%d, %d] not aligned to spacing %d", ErrTickOutOfRange, lower, upper, spacing)
	}
	return nil
}

// SqrtPriceFromTick is the square root of PriceFromTick, truncated at 18 decimals.
func SqrtPriceFromTick(tick int64) (sdkmath.LegacyDec, error) {
	price, err := PriceFromTick(tick)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return utils.SqrtDec(price)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
