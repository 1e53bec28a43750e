package utils

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// Units
const (
	SOL_UNIT     = 1e9 // 1 SOL = 10^9 lamports
	SOL_DECIMALS = 9
	MAX_LAMPORTS = math.MaxInt64
)

func HasString(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// FloatRound rounds a float64 to a specified number of decimal places.
// e.g. FloatRound(3.14159, 2) => 3.14
func FloatRound(x float64, precision int) float64 {
	return decimal.NewFromFloat(x).Round(int32(precision)).InexactFloat64()
}

// SolToLamports converts a SOL amount to lamports, truncating sub-lamport dust.
// Negative amounts map to 0.
func SolToLamports(sol float64) uint64 {
	return UiToRaw(sol, SOL_DECIMALS)
}

// LamportsToSol converts lamports to SOL.
func LamportsToSol(lamports uint64) float64 {
	return RawToUi(lamports, SOL_DECIMALS)
}

// UiToRaw converts a human readable token amount into smallest units.
// e.g. UiToRaw(1.5, 6) => 1500000
func UiToRaw(amount float64, decimals uint8) uint64 {
	d := decimal.NewFromFloat(amount).Shift(int32(decimals)).Truncate(0)
	if d.Sign() <= 0 {
		return 0
	}
	if d.GreaterThan(decimal.NewFromInt(MAX_LAMPORTS)) {
		return MAX_LAMPORTS
	}
	return uint64(d.IntPart())
}

// RawToUi converts smallest units into a human readable token amount.
func RawToUi(raw uint64, decimals uint8) float64 {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0).Shift(-int32(decimals)).InexactFloat64()
}
