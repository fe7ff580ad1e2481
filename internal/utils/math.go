/*
This file contains common math helpers shared by the accounting components:
saturating subtraction, basis-point and percentage scaling, and display
conversion between SDK math types and float64.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

const (
	// BpsDenominator is the basis-point scale: 10000 bps = 100%.
	BpsDenominator = 10000
	// PercentDenominator is the percentage scale used by strategy units.
	PercentDenominator = 100
)

// SaturatingSub returns a - b, clamped at zero. When the clamp actually
// fires it logs a warning: a tracked total dropping below a subtracted
// amount signals reconciliation drift between tracked and real balances.
func SaturatingSub(a, b sdkmath.Int, site string) sdkmath.Int {
	if a.IsNil() || b.IsNil() {
		return sdkmath.ZeroInt()
	}
	if a.LT(b) {
		log.Warn().
			Str("site", site).
			Str("minuend", a.String()).
			Str("subtrahend", b.String()).
			Msg("Saturating subtraction clamped to zero; tracked balance drift suspected")
		return sdkmath.ZeroInt()
	}
	return a.Sub(b)
}

// BpsOf returns amount * bps / 10000 using floor division.
func BpsOf(amount sdkmath.Int, bps uint64) sdkmath.Int {
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return amount.MulRaw(int64(bps)).QuoRaw(BpsDenominator)
}

// PercentOf returns amount * pct / 100 using floor division.
func PercentOf(amount sdkmath.Int, pct uint64) sdkmath.Int {
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return amount.MulRaw(int64(pct)).QuoRaw(PercentDenominator)
}

// MaxInt returns the larger of a and b.
func MaxInt(a, b sdkmath.Int) sdkmath.Int {
	if a.GTE(b) {
		return a
	}
	return b
}

// MinInt returns the smaller of a and b.
func MinInt(a, b sdkmath.Int) sdkmath.Int {
	if a.LTE(b) {
		return a
	}
	return b
}

// SDKIntToFloat64 converts an SDK Int to float64 with proper precision handling.
// Used only for display surfaces (web, logs); accounting never round-trips
// through floats.
func SDKIntToFloat64(amount sdkmath.Int, precision int) (float64, error) {
	if precision < 0 || precision > 18 {
		return 0, fmt.Errorf("%w: %d (must be between 0 and 18)", ErrInvalidPrecision, precision)
	}
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}

	decAmount := sdkmath.LegacyNewDecFromInt(amount)
	factor := sdkmath.LegacyNewDec(1)
	for i := 0; i < precision; i++ {
		factor = factor.Mul(sdkmath.LegacyNewDec(10))
	}

	result := decAmount.Quo(factor)
	resultFloat, err := result.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}

	if math.IsNaN(resultFloat) || math.IsInf(resultFloat, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, resultFloat)
	}

	return resultFloat, nil
}
