package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
)

// PlatformFeeRate is the marketplace commission applied to every order.
var PlatformFeeRate = decimal.RequireFromString("0.02")

// LineInput is one listing's weight request priced at checkout.
type LineInput struct {
	ListingID  uuid.UUID
	Weight     decimal.Decimal
	PricePerKg decimal.Decimal
}

// PricedLine is a line with its computed subtotal and fee split. The split is
// taken per line so each fisherman's net can be paid out independently.
type PricedLine struct {
	ListingID    uuid.UUID
	Weight       decimal.Decimal
	PricePerKg   decimal.Decimal
	Subtotal     decimal.Decimal
	PlatformFee  decimal.Decimal
	FishermanNet decimal.Decimal
}

// Quote is the complete pricing outcome for an order. Total is the exact sum
// of line subtotals; PlatformFee + FishermanNet always reconstructs Total.
type Quote struct {
	Lines        []PricedLine
	Total        decimal.Decimal
	PlatformFee  decimal.Decimal
	FishermanNet decimal.Decimal
}

// PriceLines computes subtotals and the fee split for a set of line inputs.
// Weights must be positive; unit prices are captured by the caller from the
// listing at reservation time.
func PriceLines(lines []LineInput) (*Quote, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}

	quote := &Quote{
		Lines: make([]PricedLine, 0, len(lines)),
		Total: decimal.Zero,
	}
	for _, line := range lines {
		if line.Weight.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line weight must be positive").
				WithDetails(map[string]any{"listing_id": line.ListingID})
		}
		if line.PricePerKg.LessThanOrEqual(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line unit price must be positive").
				WithDetails(map[string]any{"listing_id": line.ListingID})
		}
		subtotal := line.PricePerKg.Mul(line.Weight).Round(2)
		lineFee, lineNet := FeeSplit(subtotal)
		quote.Lines = append(quote.Lines, PricedLine{
			ListingID:    line.ListingID,
			Weight:       line.Weight,
			PricePerKg:   line.PricePerKg,
			Subtotal:     subtotal,
			PlatformFee:  lineFee,
			FishermanNet: lineNet,
		})
		quote.Total = quote.Total.Add(subtotal)
	}

	quote.PlatformFee, quote.FishermanNet = FeeSplit(quote.Total)
	return quote, nil
}

// FeeSplit divides a total into the platform commission and the fisherman's
// net. The fee is rounded to cents and the net takes the remainder, so the
// two always sum back to the total.
func FeeSplit(total decimal.Decimal) (fee, net decimal.Decimal) {
	fee = total.Mul(PlatformFeeRate).Round(2)
	net = total.Sub(fee)
	return fee, net
}
