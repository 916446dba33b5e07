package mpesa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/omondidev/samaki-backend/pkg/config"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.MpesaConfig{
		BaseURL:           baseURL,
		ConsumerKey:       "key",
		ConsumerSecret:    "secret",
		BusinessShortCode: "174379",
		Passkey:           "passkey",
		CallbackURL:       "https://example.com/api/v1/webhooks/mpesa",
		RequestTimeout:    2 * time.Second,
		MaxAttempts:       3,
		RetryBaseDelay:    time.Millisecond,
	}
	client, err := NewClient(cfg, logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func oauthHandler(t *testing.T, tokenCalls *int32) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("unexpected basic auth %s:%s", user, pass)
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123", "expires_in": "3599"})
	}
}

func TestSTKPushSendsDarajaPayload(t *testing.T) {
	var tokenCalls int32
	var captured map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(t, &tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   "mr-1",
			"CheckoutRequestID":   "ws_CO_1",
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL)
	resp, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:            "254712345678",
		Amount:           decimal.RequireFromString("1499.50"),
		OrderNumber:      "A1B2C3D4",
		AccountReference: "ORDERA1B2C3D4",
	})
	if err != nil {
		t.Fatalf("stk push failed: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("unexpected checkout request id %q", resp.CheckoutRequestID)
	}

	if captured["Amount"] != "1500" {
		t.Errorf("fractional amounts must round up on the wire, got %q", captured["Amount"])
	}
	if captured["PartyA"] != "254712345678" || captured["PhoneNumber"] != "254712345678" {
		t.Errorf("phone not propagated: %v", captured)
	}
	if captured["BusinessShortCode"] != "174379" || captured["PartyB"] != "174379" {
		t.Errorf("short code not propagated: %v", captured)
	}
	if captured["Password"] == "" || captured["Timestamp"] == "" {
		t.Errorf("password/timestamp missing: %v", captured)
	}
	if captured["TransactionType"] != "CustomerPayBillOnline" {
		t.Errorf("unexpected transaction type %q", captured["TransactionType"])
	}
}

func TestSTKPushCachesToken(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(t, &tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"CheckoutRequestID": "ws_CO_1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL)
	for i := 0; i < 3; i++ {
		if _, err := client.STKPush(context.Background(), STKPushRequest{
			Phone:  "254712345678",
			Amount: decimal.NewFromInt(100),
		}); err != nil {
			t.Fatalf("push %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&tokenCalls); got != 1 {
		t.Fatalf("expected a single token fetch, got %d", got)
	}
}

func TestSTKPushRetriesServerErrors(t *testing.T) {
	var tokenCalls, pushCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(t, &tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&pushCalls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"CheckoutRequestID": "ws_CO_2"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL)
	resp, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("expected retries to recover: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_2" {
		t.Fatalf("unexpected checkout request id %q", resp.CheckoutRequestID)
	}
	if got := atomic.LoadInt32(&pushCalls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestSTKPushMapsClientErrors(t *testing.T) {
	var tokenCalls, pushCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(t, &tokenCalls))
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pushCalls, 1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"errorMessage": "Invalid PhoneNumber"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL)
	_, err := client.STKPush(context.Background(), STKPushRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(50),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeGatewayRejected) {
		t.Fatalf("expected GATEWAY_REJECTED, got %v", err)
	}
	if got := atomic.LoadInt32(&pushCalls); got != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", got)
	}
}

func TestQueryStatus(t *testing.T) {
	var tokenCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", oauthHandler(t, &tokenCalls))
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]string
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["CheckoutRequestID"] != "ws_CO_9" {
			t.Errorf("unexpected query payload %v", payload)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode": "0",
			"ResultCode":   "1032",
			"ResultDesc":   "Request cancelled by user",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL)
	resp, err := client.QueryStatus(context.Background(), "ws_CO_9")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if resp.ResultCode != "1032" {
		t.Fatalf("unexpected result code %q", resp.ResultCode)
	}
}

func TestPasswordDerivation(t *testing.T) {
	client := testClient(t, "http://unused")
	// base64("174379" + "passkey" + timestamp)
	got := client.password("20260101120000")
	want := "MTc0Mzc5cGFzc2tleTIwMjYwMTAxMTIwMDAw"
	if got != want {
		t.Fatalf("password mismatch: got %q want %q", got, want)
	}
}
