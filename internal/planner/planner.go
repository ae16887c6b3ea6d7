package planner

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/clvault/internal/tickmath"
	"github.com/elys-network/clvault/internal/types"
	"github.com/elys-network/clvault/internal/utils"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrice       = errors.New("price must be positive")
	ErrInvalidTickSpacing = errors.New("tick spacing must be positive")
	ErrInvalidTick        = errors.New("current tick outside the valid domain")
	ErrInvalidBalances    = errors.New("balances must be set and non-negative")
	ErrInvalidParams      = errors.New("vault parameters are invalid")
	ErrMathematicalError  = errors.New("mathematical calculation error")
)

// Input is everything the range calculation depends on.
type Input struct {
	Price       sdkmath.LegacyDec // token1 per token0
	CurrentTick int64
	TickSpacing uint64
	Params      types.VaultParameters
	Balance0    sdkmath.Int
	Balance1    sdkmath.Int
}

// TargetRange is a range to open. Offer0/Offer1 are handed to the pool; Amount0 and
// Amount1 are what the pool consumes from them at the current tick.
type TargetRange struct {
	Kind      types.PositionKind `json:"kind"`
	LowerTick int64              `json:"lower_tick"`
	UpperTick int64              `json:"upper_tick"`
	Offer0    sdkmath.Int        `json:"offer0"`
	Offer1    sdkmath.Int        `json:"offer1"`
	Amount0   sdkmath.Int        `json:"amount0"`
	Amount1   sdkmath.Int        `json:"amount1"`
}

// ComputeRanges splits the balances into up to three ranges, in the order full,
// base, limit. Ranges that collapse or would hold zero liquidity are left out.
//
// The full range and the base range share one liquidity budget, the full range
// carrying FullRangeWeight of it. The budget is the largest one both balances can
// fund at the token ratio each range needs at the current tick. Whatever the two
// ranges leave over goes to a one-sided limit range. Ranges are sized with the pool's
// own liquidity math, so the planned amounts are exactly what the pool consumes.
func ComputeRanges(in Input) ([]TargetRange, error) {
	if err := validateInputs(in); err != nil {
		return nil, err
	}

	baseLower, baseUpper, err := baseRange(in)
	if err != nil {
		return nil, err
	}

	w := in.Params.FullRangeWeight
	shares := []liquidityShare{
		{kind: types.PositionFull, lower: tickmath.MinValidTick(in.TickSpacing), upper: tickmath.MaxValidTick(in.TickSpacing), weight: w},
		{kind: types.PositionBase, lower: baseLower, upper: baseUpper, weight: sdkmath.LegacyOneDec().Sub(w)},
	}

	cost0, cost1 := sdkmath.LegacyZeroDec(), sdkmath.LegacyZeroDec()
	for i := range shares {
		s := &shares[i]
		if !s.weight.IsPositive() || s.lower >= s.upper {
			s.weight = sdkmath.LegacyZeroDec()
			continue
		}
		sp, err := tickmath.RangeSqrtPrices(s.lower, s.upper, in.CurrentTick)
		if err != nil {
			return nil, mathErr(string(s.kind)+" sqrt prices", err)
		}
		u0, u1, err := tickmath.UnitAmounts(sp, in.CurrentTick, s.lower, s.upper)
		if err != nil {
			return nil, mathErr(string(s.kind)+" unit amounts", err)
		}
		if s.unit0, err = utils.MulDecs(s.weight, u0); err != nil {
			return nil, mathErr(string(s.kind)+" weighted token0", err)
		}
		if s.unit1, err = utils.MulDecs(s.weight, u1); err != nil {
			return nil, mathErr(string(s.kind)+" weighted token1", err)
		}
		cost0 = cost0.Add(s.unit0)
		cost1 = cost1.Add(s.unit1)
	}

	budget, err := liquidityBudget(in.Balance0, in.Balance1, cost0, cost1)
	if err != nil {
		return nil, err
	}

	ranges := make([]TargetRange, 0, 3)
	left0, left1 := in.Balance0, in.Balance1
	for _, s := range shares {
		if !s.weight.IsPositive() || !budget.IsPositive() {
			continue
		}
		offer0, err := utils.MulDecs(budget, s.unit0)
		if err != nil {
			return nil, mathErr(string(s.kind)+" token0", err)
		}
		offer1, err := utils.MulDecs(budget, s.unit1)
		if err != nil {
			return nil, mathErr(string(s.kind)+" token1", err)
		}
		r, ok, err := fund(in, s.kind, s.lower, s.upper,
			sdkmath.MinInt(offer0.TruncateInt(), left0), sdkmath.MinInt(offer1.TruncateInt(), left1))
		if err != nil {
			return nil, err
		}
		if ok {
			ranges = append(ranges, r)
			left0 = left0.Sub(r.Amount0)
			left1 = left1.Sub(r.Amount1)
		}
	}

	limit, ok, err := limitRange(in, left0, left1)
	if err != nil {
		return nil, err
	}
	if ok {
		ranges = append(ranges, limit)
	}

	return ranges, nil
}

// liquidityShare is one of the ranges sharing the liquidity budget. unit0 and unit1
// are the tokens one unit of the budget puts into this range.
type liquidityShare struct {
	kind         types.PositionKind
	lower, upper int64
	weight       sdkmath.LegacyDec
	unit0, unit1 sdkmath.LegacyDec
}

func validateInputs(in Input) error {
	if in.Price.IsNil() || !in.Price.IsPositive() {
		return ErrInvalidPrice
	}
	if err := tickmath.ValidateSpacing(in.TickSpacing); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTickSpacing, err)
	}
	if in.CurrentTick < tickmath.MinTick || in.CurrentTick > tickmath.MaxTick {
		return fmt.Errorf("%w: %d", ErrInvalidTick, in.CurrentTick)
	}
	if utils.CheckAmount(in.Balance0) != nil || utils.CheckAmount(in.Balance1) != nil {
		return ErrInvalidBalances
	}
	if err := in.Params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// liquidityBudget is the largest liquidity whose token needs, cost0 and cost1 per
// unit, both balances cover. A side with no cost does not constrain it.
func liquidityBudget(bal0, bal1 sdkmath.Int, cost0, cost1 sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	budget := sdkmath.LegacyDec{}
	for _, side := range []struct {
		balance sdkmath.Int
		cost    sdkmath.LegacyDec
	}{{bal0, cost0}, {bal1, cost1}} {
		if !side.cost.IsPositive() {
			continue
		}
		l, err := utils.QuoDecs(sdkmath.LegacyNewDecFromInt(side.balance), side.cost)
		if err != nil {
			return sdkmath.LegacyDec{}, mathErr("liquidity budget", err)
		}
		if budget.IsNil() || l.LT(budget) {
			budget = l
		}
	}
	if budget.IsNil() {
		return sdkmath.LegacyZeroDec(), nil
	}
	return budget, nil
}

// fund sizes a range the way the pool will: the liquidity the offered amounts fund,
// and the amounts that liquidity holds. A range funding no liquidity is dropped.
func fund(in Input, kind types.PositionKind, lower, upper int64, offer0, offer1 sdkmath.Int) (TargetRange, bool, error) {
	if lower >= upper || (!offer0.IsPositive() && !offer1.IsPositive()) {
		return TargetRange{}, false, nil
	}
	sp, err := tickmath.RangeSqrtPrices(lower, upper, in.CurrentTick)
	if err != nil {
		return TargetRange{}, false, mathErr(string(kind)+" sqrt prices", err)
	}
	liquidity, err := tickmath.LiquidityForAmounts(sp, in.CurrentTick, lower, upper, offer0, offer1)
	if err != nil {
		return TargetRange{}, false, mathErr(string(kind)+" liquidity", err)
	}
	if !liquidity.IsPositive() {
		return TargetRange{}, false, nil
	}
	a0, a1, err := tickmath.AmountsForLiquidity(sp, in.CurrentTick, lower, upper, liquidity)
	if err != nil {
		return TargetRange{}, false, mathErr(string(kind)+" amounts", err)
	}
	if !a0.IsPositive() && !a1.IsPositive() {
		return TargetRange{}, false, nil
	}
	return TargetRange{
		Kind:      kind,
		LowerTick: lower,
		UpperTick: upper,
		Offer0:    offer0,
		Offer1:    offer1,
		Amount0:   a0,
		Amount1:   a1,
	}, true, nil
}

// baseRange is centred on the current tick with a half-width of
// ceil(BaseFactor * spacing), both bounds rounded outward to the spacing.
func baseRange(in Input) (int64, int64, error) {
	half, err := widthInTicks(in.Params.BaseFactor, in.TickSpacing)
	if err != nil {
		return 0, 0, err
	}
	minTick := tickmath.MinValidTick(in.TickSpacing)
	maxTick := tickmath.MaxValidTick(in.TickSpacing)

	lower := tickmath.RoundDown(in.CurrentTick-half, in.TickSpacing)
	upper := tickmath.RoundUp(in.CurrentTick+half, in.TickSpacing)
	return max(lower, minTick), min(upper, maxTick), nil
}

// limitRange places what the other ranges left over next to the current tick, on
// the side where a position holds a single asset: token0 above the price, token1
// below. When both assets are left the one worth more at the spot price is used.
func limitRange(in Input, left0, left1 sdkmath.Int) (TargetRange, bool, error) {
	if !left0.IsPositive() && !left1.IsPositive() {
		return TargetRange{}, false, nil
	}
	value0, err := utils.MulDec(left0, in.Price)
	if err != nil {
		return TargetRange{}, false, mathErr("limit value", err)
	}
	width, err := widthInTicks(in.Params.LimitFactor, in.TickSpacing)
	if err != nil {
		return TargetRange{}, false, err
	}
	minTick := tickmath.MinValidTick(in.TickSpacing)
	maxTick := tickmath.MaxValidTick(in.TickSpacing)
	below := tickmath.RoundDown(in.CurrentTick, in.TickSpacing)

	if left0.IsPositive() && value0.GTE(left1) {
		lower := max(below+int64(in.TickSpacing), minTick)
		upper := min(lower+width, maxTick)
		return fund(in, types.PositionLimit, lower, upper, left0, sdkmath.ZeroInt())
	}
	upper := min(below, maxTick)
	lower := max(upper-width, minTick)
	return fund(in, types.PositionLimit, lower, upper, sdkmath.ZeroInt(), left1)
}

// widthInTicks returns ceil(factor * spacing) rounded up to a multiple of spacing,
// capped at the width of the whole tick domain.
func widthInTicks(factor sdkmath.LegacyDec, spacing uint64) (int64, error) {
	raw, err := utils.MulDivCeil(sdkmath.NewIntFromUint64(spacing), utils.Atomics(factor), utils.DecScale())
	if err != nil {
		return 0, mathErr("range width", err)
	}
	domain := sdkmath.NewInt(tickmath.MaxTick - tickmath.MinTick)
	if raw.GT(domain) {
		raw = domain
	}
	return tickmath.RoundUp(raw.Int64(), spacing), nil
}

func mathErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMathematicalError, what, err)
}
