package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// callbackEnvelope mirrors the Daraja STK callback wire format.
type callbackEnvelope struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string         `json:"MerchantRequestID"`
			CheckoutRequestID string         `json:"CheckoutRequestID"`
			ResultCode        json.Number    `json:"ResultCode"`
			ResultDesc        string         `json:"ResultDesc"`
			CallbackMetadata  *callbackItems `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type callbackItems struct {
	Item []struct {
		Name  string `json:"Name"`
		Value any    `json:"Value"`
	} `json:"Item"`
}

// CallbackResult is the reconciliation-ready view of one gateway callback.
// Success means ResultCode == 0; the metadata fields are only populated on
// success.
type CallbackResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string
	Success           bool
	Amount            decimal.Decimal
	Receipt           string
	Phone             string
	TransactionDate   string
}

// ParseCallback decodes the raw callback payload. Unknown fields are
// tolerated; a missing CheckoutRequestID is an error because the callback
// cannot be correlated without it.
func ParseCallback(raw []byte) (*CallbackResult, error) {
	var envelope callbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding callback payload: %w", err)
	}

	cb := envelope.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("callback missing CheckoutRequestID")
	}

	resultCode := -1
	if code, err := cb.ResultCode.Int64(); err == nil {
		resultCode = int(code)
	}

	result := &CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        resultCode,
		ResultDesc:        cb.ResultDesc,
		Success:           resultCode == 0,
	}
	if !result.Success || cb.CallbackMetadata == nil {
		return result, nil
	}

	for _, item := range cb.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			amount, err := decimalFromAny(item.Value)
			if err != nil {
				return nil, fmt.Errorf("parsing callback amount: %w", err)
			}
			result.Amount = amount
		case "MpesaReceiptNumber":
			result.Receipt = fmt.Sprint(item.Value)
		case "PhoneNumber":
			result.Phone = trimFloatSuffix(fmt.Sprint(item.Value))
		case "TransactionDate":
			result.TransactionDate = trimFloatSuffix(fmt.Sprint(item.Value))
		}
	}
	return result, nil
}

func decimalFromAny(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	case json.Number:
		return decimal.NewFromString(v.String())
	default:
		return decimal.Zero, fmt.Errorf("unsupported amount type %T", value)
	}
}

// trimFloatSuffix drops the ".0" tail json decoding leaves on numeric
// MSISDNs and timestamps.
func trimFloatSuffix(s string) string {
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}
