// Package redact removes sensitive information from strings before they are
// logged or returned in error responses. Provider API keys, bearer tokens,
// connection strings and file paths are replaced with placeholders.
package redact

import (
	"net/url"
	"regexp"
	"strings"
)

// Placeholders substituted for matched values.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

type rule struct {
	re          *regexp.Regexp
	placeholder string
}

// rules run in order. Provider keys come first so the generic key=value
// rule does not swallow only half of one.
var rules = []rule{
	// Google AI and OpenAI keys
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{20,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_\-]{16,}`), RedactedKeyPlaceholder},

	{regexp.MustCompile(`(?i)(postgres|postgresql|redis|rediss|db|database)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedJWTPlaceholder},
	{
		regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|token|secret|key|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`),
		RedactedKeyPlaceholder,
	},

	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	{
		regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"$]+)?`),
		"[REDACTED_SQL]",
	},
	{
		regexp.MustCompile(`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`),
		"[REDACTED_HOST]",
	},
}

// String redacts sensitive information from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}

// sensitiveParams are query parameters that carry credentials.
var sensitiveParams = []string{"access_token", "token", "key", "api_key"}

// RequestURI masks credential-bearing query parameters in a request URI so
// it can be logged. Browser progress streams pass the JWT as access_token.
func RequestURI(uri string) string {
	path, rawQuery, found := strings.Cut(uri, "?")
	if !found || rawQuery == "" {
		return uri
	}
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return path + "?" + RedactionPlaceholder
	}
	changed := false
	for _, p := range sensitiveParams {
		if q.Has(p) {
			q.Set(p, RedactionPlaceholder)
			changed = true
		}
	}
	if !changed {
		return uri
	}
	return path + "?" + q.Encode()
}
