package pricing

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFeeSplitRoundTotal(t *testing.T) {
	fee, net := FeeSplit(d("1000.00"))
	if !fee.Equal(d("20.00")) {
		t.Fatalf("expected fee 20.00, got %s", fee)
	}
	if !net.Equal(d("980.00")) {
		t.Fatalf("expected net 980.00, got %s", net)
	}
}

func TestFeeSplitAlwaysReconstructsTotal(t *testing.T) {
	totals := []string{"0.01", "0.49", "0.50", "33.33", "99.99", "1234.56", "100000.01"}
	for _, raw := range totals {
		total := d(raw)
		fee, net := FeeSplit(total)
		if !fee.Add(net).Equal(total) {
			t.Errorf("total %s: fee %s + net %s != total", total, fee, net)
		}
		if fee.Exponent() < -2 || net.Exponent() < -2 {
			t.Errorf("total %s: split not in cents (fee %s, net %s)", total, fee, net)
		}
	}
}

func TestFeeSplitFractionalFeeGoesToPlatform(t *testing.T) {
	// 2% of 33.33 is 0.6666; fee rounds to 0.67 and the net absorbs the rest.
	fee, net := FeeSplit(d("33.33"))
	if !fee.Equal(d("0.67")) {
		t.Fatalf("expected fee 0.67, got %s", fee)
	}
	if !net.Equal(d("32.66")) {
		t.Fatalf("expected net 32.66, got %s", net)
	}
}

func TestPriceLinesComputesSubtotals(t *testing.T) {
	listingA := uuid.New()
	listingB := uuid.New()
	quote, err := PriceLines([]LineInput{
		{ListingID: listingA, Weight: d("2.5"), PricePerKg: d("400.00")},
		{ListingID: listingB, Weight: d("1.2"), PricePerKg: d("650.50")},
	})
	if err != nil {
		t.Fatalf("price lines: %v", err)
	}
	if len(quote.Lines) != 2 {
		t.Fatalf("expected 2 priced lines, got %d", len(quote.Lines))
	}
	if !quote.Lines[0].Subtotal.Equal(d("1000.00")) {
		t.Fatalf("expected subtotal 1000.00, got %s", quote.Lines[0].Subtotal)
	}
	// 1.2 * 650.50 = 780.60
	if !quote.Lines[1].Subtotal.Equal(d("780.60")) {
		t.Fatalf("expected subtotal 780.60, got %s", quote.Lines[1].Subtotal)
	}
	for _, line := range quote.Lines {
		if !line.PlatformFee.Add(line.FishermanNet).Equal(line.Subtotal) {
			t.Fatalf("line %s: fee %s + net %s != subtotal %s", line.ListingID, line.PlatformFee, line.FishermanNet, line.Subtotal)
		}
	}
	if !quote.Lines[0].PlatformFee.Equal(d("20.00")) {
		t.Fatalf("expected line fee 20.00, got %s", quote.Lines[0].PlatformFee)
	}
	if !quote.Total.Equal(d("1780.60")) {
		t.Fatalf("expected total 1780.60, got %s", quote.Total)
	}
	if !quote.PlatformFee.Add(quote.FishermanNet).Equal(quote.Total) {
		t.Fatalf("fee split does not reconstruct total")
	}
}

func TestPriceLinesRejectsNonPositiveWeight(t *testing.T) {
	_, err := PriceLines([]LineInput{
		{ListingID: uuid.New(), Weight: d("0"), PricePerKg: d("100.00")},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}

	_, err = PriceLines([]LineInput{
		{ListingID: uuid.New(), Weight: d("-1.5"), PricePerKg: d("100.00")},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}

func TestPriceLinesRejectsEmptyInput(t *testing.T) {
	if _, err := PriceLines(nil); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
