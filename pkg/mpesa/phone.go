package mpesa

import (
	"fmt"
	"regexp"
	"strings"
)

var msisdnRe = regexp.MustCompile(`^254[17]\d{8}$`)

// NormalizePhone converts local Kenyan formats (07..., +254..., 7...) to the
// canonical 254XXXXXXXXX MSISDN the gateway expects.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.TrimSpace(phone)
	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")

	switch {
	case strings.HasPrefix(cleaned, "0"):
		cleaned = "254" + cleaned[1:]
	case strings.HasPrefix(cleaned, "254"):
		// already canonical
	default:
		cleaned = "254" + cleaned
	}

	if !msisdnRe.MatchString(cleaned) {
		return "", fmt.Errorf("invalid phone number %q", phone)
	}
	return cleaned, nil
}
