package logger

import "strings"

// SanitizedEmail masks an email address for log output, keeping the first
// character of the local part and the full domain.
func SanitizedEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// sensitiveParams are query parameters whose values must never reach logs.
var sensitiveParams = []string{"token", "code", "key", "secret", "password"}

// SanitizeQueryString reports whether a raw query string carries a sensitive
// parameter and must be redacted from log output.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	lower := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(lower, param+"=") {
			return true
		}
	}
	return false
}

// SanitizedIMEI masks a device IMEI, keeping the last four digits.
func SanitizedIMEI(imei string) string {
	if len(imei) <= 4 {
		return "***"
	}
	return "***" + imei[len(imei)-4:]
}
