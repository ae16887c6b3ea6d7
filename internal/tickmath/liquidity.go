package tickmath

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvault/internal/utils"
)

var (
	scale   = utils.DecScale()
	scaleSq = scale.Mul(scale)
)

// SqrtPrices holds the square roots of a range's bound prices and of the price at
// the current tick.
type SqrtPrices struct {
	Lower, Upper, Current sdkmath.LegacyDec
}

// RangeSqrtPrices resolves the square root prices of a range at currentTick.
func RangeSqrtPrices(lowerTick, upperTick, currentTick int64) (SqrtPrices, error) {
	var (
		r   SqrtPrices
		err error
	)
	if r.Lower, err = SqrtPriceFromTick(lowerTick); err != nil {
		return r, err
	}
	if r.Upper, err = SqrtPriceFromTick(upperTick); err != nil {
		return r, err
	}
	if r.Current, err = SqrtPriceFromTick(currentTick); err != nil {
		return r, err
	}
	return r, nil
}

// liquidityForAmount0 is amount0 * sa * sb / (sb - sa).
func liquidityForAmount0(amount0 sdkmath.Int, sa, sb sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	diff := utils.Atomics(sb.Sub(sa))
	prod, err := utils.MulDecs(sa, sb)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	scaled, err := utils.Mul(amount0, scale)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	atoms, err := utils.MulDiv(scaled, utils.Atomics(prod), diff)
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return utils.DecFromAtomics(atoms), nil
}

// liquidityForAmount1 is amount1 / (sb - sa).
func liquidityForAmount1(amount1 sdkmath.Int, sa, sb sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	atoms, err := utils.MulDiv(amount1, scaleSq, utils.Atomics(sb.Sub(sa)))
	if err != nil {
		return sdkmath.LegacyDec{}, err
	}
	return utils.DecFromAtomics(atoms), nil
}

// amount0ForLiquidity is floor(L * (sb - sa) / (sa * sb)).
func amount0ForLiquidity(liquidity sdkmath.LegacyDec, sa, sb sdkmath.LegacyDec) (sdkmath.Int, error) {
	prod, err := utils.MulDecs(sa, sb)
	if err != nil {
		return sdkmath.Int{}, err
	}
	denom, err := utils.Mul(utils.Atomics(prod), scale)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return utils.MulDiv(utils.Atomics(liquidity), utils.Atomics(sb.Sub(sa)), denom)
}

// amount1ForLiquidity is floor(L * (sb - sa)).
func amount1ForLiquidity(liquidity sdkmath.LegacyDec, sa, sb sdkmath.LegacyDec) (sdkmath.Int, error) {
	return utils.MulDiv(utils.Atomics(liquidity), utils.Atomics(sb.Sub(sa)), scaleSq)
}

// LiquidityForAmounts is the largest liquidity the amounts can fund over the range.
// At or below the lower bound the range holds only token0, at or above the upper
// bound only token1.
func LiquidityForAmounts(sp SqrtPrices, currentTick, lowerTick, upperTick int64, amount0, amount1 sdkmath.Int) (sdkmath.LegacyDec, error) {
	switch {
	case currentTick <= lowerTick:
		return liquidityForAmount0(amount0, sp.Lower, sp.Upper)
	case currentTick >= upperTick:
		return liquidityForAmount1(amount1, sp.Lower, sp.Upper)
	default:
		l0, err := liquidityForAmount0(amount0, sp.Current, sp.Upper)
		if err != nil {
			return sdkmath.LegacyDec{}, err
		}
		l1, err := liquidityForAmount1(amount1, sp.Lower, sp.Current)
		if err != nil {
			return sdkmath.LegacyDec{}, err
		}
		return sdkmath.LegacyMinDec(l0, l1), nil
	}
}

// AmountsForLiquidity is the principal held by liquidity at the current tick, rounded
// down on both sides so a pool never pays out more than it took in.
func AmountsForLiquidity(sp SqrtPrices, currentTick, lowerTick, upperTick int64, liquidity sdkmath.LegacyDec) (sdkmath.Int, sdkmath.Int, error) {
	switch {
	case currentTick <= lowerTick:
		a0, err := amount0ForLiquidity(liquidity, sp.Lower, sp.Upper)
		return a0, sdkmath.ZeroInt(), err
	case currentTick >= upperTick:
		a1, err := amount1ForLiquidity(liquidity, sp.Lower, sp.Upper)
		return sdkmath.ZeroInt(), a1, err
	default:
		a0, err := amount0ForLiquidity(liquidity, sp.Current, sp.Upper)
		if err != nil {
			return sdkmath.Int{}, sdkmath.Int{}, err
		}
		a1, err := amount1ForLiquidity(liquidity, sp.Lower, sp.Current)
		if err != nil {
			return sdkmath.Int{}, sdkmath.Int{}, err
		}
		return a0, a1, nil
	}
}

// UnitAmounts is the principal one unit of liquidity holds over the range, truncated
// at 18 decimals. It follows the same bound rules as AmountsForLiquidity.
func UnitAmounts(sp SqrtPrices, currentTick, lowerTick, upperTick int64) (sdkmath.LegacyDec, sdkmath.LegacyDec, error) {
	unit0 := func(sa, sb sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
		prod, err := utils.MulDecs(sa, sb)
		if err != nil {
			return sdkmath.LegacyDec{}, err
		}
		return utils.QuoDecs(sb.Sub(sa), prod)
	}
	switch {
	case currentTick <= lowerTick:
		u0, err := unit0(sp.Lower, sp.Upper)
		return u0, sdkmath.LegacyZeroDec(), err
	case currentTick >= upperTick:
		return sdkmath.LegacyZeroDec(), sp.Upper.Sub(sp.Lower), nil
	default:
		u0, err := unit0(sp.Current, sp.Upper)
		if err != nil {
			return sdkmath.LegacyDec{}, sdkmath.LegacyDec{}, err
		}
		return u0, sp.Current.Sub(sp.Lower), nil
	}
}
