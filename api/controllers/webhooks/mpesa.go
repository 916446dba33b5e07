package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/omondidev/samaki-backend/api/responses"
	"github.com/omondidev/samaki-backend/internal/payments"
	"github.com/omondidev/samaki-backend/pkg/config"
	pkgerrors "github.com/omondidev/samaki-backend/pkg/errors"
	"github.com/omondidev/samaki-backend/pkg/logger"
	"github.com/omondidev/samaki-backend/pkg/mpesa"
)

const signatureHeader = "X-Callback-Signature"

type callbackReconciler interface {
	Reconcile(ctx context.Context, result *mpesa.CallbackResult) (payments.Outcome, error)
}

type callbackGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// MpesaCallback ingests STK push result callbacks. The gateway retries on
// non-2xx responses, so every processed delivery is acknowledged with the
// shape Daraja expects; verification failures are the only rejections.
func MpesaCallback(reconciler callbackReconciler, guard callbackGuard, cfg config.MpesaConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if reconciler == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if err := verifyCallbackSource(r, payload, cfg, logg); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		result, err := mpesa.ParseCallback(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed callback"))
			return
		}
		ctx = logg.WithCheckoutRequestID(ctx, result.CheckoutRequestID)

		alreadyProcessed, err := guard.CheckAndMark(ctx, result.CheckoutRequestID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			logg.Info(ctx, "callback already processed")
			writeAck(w)
			return
		}

		if _, err := reconciler.Reconcile(ctx, result); err != nil {
			_ = guard.Delete(ctx, result.CheckoutRequestID)
			// A callback for a push this instance never issued usually
			// means a stale retry from a previous environment; acking it
			// stops the retry storm when configured to.
			if pkgerrors.HasCode(err, pkgerrors.CodeUnknownTransaction) && cfg.AckUnknown {
				logg.Warn(ctx, "acknowledged callback for unknown transaction")
				writeAck(w)
				return
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		writeAck(w)
	}
}

func verifyCallbackSource(r *http.Request, payload []byte, cfg config.MpesaConfig, logg *logger.Logger) error {
	if cfg.CallbackSecret == "" && cfg.AllowedSourceCIDR == "" {
		logg.Warn(r.Context(), "callback accepted without verification; configure a secret or CIDR allowlist")
		return nil
	}

	if cfg.CallbackSecret != "" {
		header := r.Header.Get(signatureHeader)
		if header == "" {
			return pkgerrors.New(pkgerrors.CodeUnverifiedCallback, "callback signature missing")
		}
		mac := hmac.New(sha256.New, []byte(cfg.CallbackSecret))
		mac.Write(payload)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(strings.ToLower(header))) {
			return pkgerrors.New(pkgerrors.CodeUnverifiedCallback, "callback signature mismatch")
		}
	}

	if cfg.AllowedSourceCIDR != "" {
		ip := clientIP(r)
		if ip == nil || !ipAllowed(ip, cfg.AllowedSourceCIDR) {
			return pkgerrors.New(pkgerrors.CodeUnverifiedCallback, "callback source not allowed")
		}
	}
	return nil
}

func clientIP(r *http.Request) net.IP {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func ipAllowed(ip net.IP, allowlist string) bool {
	for _, entry := range strings.Split(allowlist, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		_, network, err := net.ParseCIDR(entry)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"ResultCode": 0,
		"ResultDesc": "Accepted",
	})
}
