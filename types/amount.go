package types

import (
	"math/big"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// USDCDecimals is the number of fractional digits of the USDC token on every supported chain.
const USDCDecimals = 6

// MaxAmountBits bounds smallest-unit amounts to what fits a uint256 call argument.
const MaxAmountBits = 256

var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// FormatUSDCAmount converts a human decimal amount ("2.5") into smallest units (2500000).
// Only plain decimals are accepted. Inputs with more than six fractional digits or
// that do not fit a uint256 are rejected rather than truncated.
func FormatUSDCAmount(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, NewTransferError(CodeValidation, "amount is required")
	}
	if !plainDecimal.MatchString(amount) {
		return nil, NewTransferError(CodeValidation, "amount %q is not a plain decimal number", amount)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, NewTransferError(CodeValidation, "amount %q is not a decimal number", amount)
	}
	if !d.IsPositive() {
		return nil, NewTransferError(CodeValidation, "amount %q must be positive", amount)
	}
	if d.Exponent() < -USDCDecimals {
		return nil, NewTransferError(CodeValidation, "amount %q has more than %d fractional digits", amount, USDCDecimals)
	}

	units := d.Shift(USDCDecimals)
	if !units.IsInteger() {
		return nil, NewTransferError(CodeValidation, "amount %q has more than %d fractional digits", amount, USDCDecimals)
	}
	out := units.BigInt()
	if out.BitLen() > MaxAmountBits {
		return nil, NewTransferError(CodeValidation, "amount %q exceeds the uint256 range", amount)
	}
	return out, nil
}

// FormatUSDCUnits renders smallest units back into a human decimal string.
func FormatUSDCUnits(units *big.Int) string {
	if units == nil {
		return "0"
	}
	return decimal.NewFromBigInt(units, -USDCDecimals).String()
}
