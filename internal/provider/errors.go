package provider

import (
	"net/http"
	"strings"

	"github.com/jonesrussell/north-cloud/enrichment/internal/domain"
)

// maxUpstreamMessageLen bounds how much upstream body text is preserved in
// mapped error messages.
const maxUpstreamMessageLen = 256

// MapHTTPError translates an upstream HTTP status into the shared error
// taxonomy. The upstream body is kept (truncated) where it helps operators
// debug, but never interpreted.
func MapHTTPError(providerID string, status int, body string) *domain.Error {
	msg := strings.TrimSpace(body)
	if len(msg) > maxUpstreamMessageLen {
		msg = msg[:maxUpstreamMessageLen]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	var code domain.ErrorCode
	switch {
	case status == http.StatusUnauthorized:
		code = domain.CodeAuthentication
	case status == http.StatusForbidden:
		code = domain.CodeAuthorization
	case status == http.StatusPaymentRequired:
		code = domain.CodeProviderQuota
	case status == http.StatusTooManyRequests:
		code = domain.CodeProviderRateLimit
	case status == http.StatusNotFound:
		code = domain.CodeNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		code = domain.CodeValidation
	case status == http.StatusRequestTimeout:
		code = domain.CodeTimeout
	case status >= http.StatusInternalServerError:
		code = domain.CodeProvider
	default:
		code = domain.CodeUnknown
	}

	return domain.NewErrorf(code, "upstream status %d: %s", status, msg).WithProvider(providerID)
}
