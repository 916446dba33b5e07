package mpesa

import (
	"testing"

	"github.com/shopspring/decimal"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 1020.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254708374149}
        ]
      }
    }
  }
}`

const failureCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 1032,
      "ResultDesc": "Request cancelled by user."
    }
  }
}`

func TestParseCallbackSuccess(t *testing.T) {
	result, err := ParseCallback([]byte(successCallback))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Fatalf("unexpected checkout request id %q", result.CheckoutRequestID)
	}
	if !result.Amount.Equal(decimal.RequireFromString("1020")) {
		t.Fatalf("unexpected amount %s", result.Amount)
	}
	if result.Receipt != "NLJ7RT61SV" {
		t.Fatalf("unexpected receipt %q", result.Receipt)
	}
	if result.Phone != "254708374149" {
		t.Fatalf("unexpected phone %q", result.Phone)
	}
	if result.TransactionDate != "20191219102115" {
		t.Fatalf("unexpected transaction date %q", result.TransactionDate)
	}
}

func TestParseCallbackFailure(t *testing.T) {
	result, err := ParseCallback([]byte(failureCallback))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.ResultCode != 1032 {
		t.Fatalf("unexpected result code %d", result.ResultCode)
	}
	if !result.Amount.IsZero() {
		t.Fatalf("failure callbacks carry no amount, got %s", result.Amount)
	}
}

func TestParseCallbackMissingCheckoutRequestID(t *testing.T) {
	if _, err := ParseCallback([]byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)); err == nil {
		t.Fatal("expected error for uncorrelatable callback")
	}
}

func TestParseCallbackMalformed(t *testing.T) {
	if _, err := ParseCallback([]byte(`{"Body":`)); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0712345678", "254712345678", false},
		{"712345678", "254712345678", false},
		{"+254712345678", "254712345678", false},
		{"254712345678", "254712345678", false},
		{"0110123456", "254110123456", false},
		{"071234567", "", true},
		{"not-a-phone", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizePhone(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizePhone(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
