package logging

import (
	"io"
	"regexp"
	"sort"
	"strings"
)

// keyPatterns match provider keys that may leak into error strings or
// request dumps.
var keyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-(?:proj-|ant-)?[A-Za-z0-9_\-]{20,}`), // OpenAI, Anthropic
	regexp.MustCompile(`gsk_[A-Za-z0-9]{20,}`),                   // Groq
	regexp.MustCompile(`AIza[0-9A-Za-z_\-]{30,}`),                // Google
	regexp.MustCompile(`(?i)((?:api[_-]?key|secret[_-]?key|key[_-]?id|token|password)\\?"?\s*[=:]\s*\\?"?)([^\s"\\,&}]+)`),
}

// MaskCredential keeps the first and last four characters of long values.
func MaskCredential(value string) string {
	switch {
	case value == "":
		return ""
	case len(value) <= 4:
		return strings.Repeat("*", len(value))
	case len(value) <= 8:
		return value[:2] + strings.Repeat("*", len(value)-2)
	default:
		return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
	}
}

// Redact masks known credentials and key-shaped tokens in s.
func Redact(s string, secrets ...string) string {
	for _, secret := range secrets {
		if len(secret) >= 6 {
			s = strings.ReplaceAll(s, secret, MaskCredential(secret))
		}
	}
	for i, p := range keyPatterns {
		if i == len(keyPatterns)-1 {
			s = p.ReplaceAllStringFunc(s, func(m string) string {
				parts := p.FindStringSubmatch(m)
				return parts[1] + MaskCredential(parts[2])
			})
			continue
		}
		s = p.ReplaceAllStringFunc(s, MaskCredential)
	}
	return s
}

// RedactWriter masks credentials in every log record before passing it on.
type RedactWriter struct {
	next    io.Writer
	secrets []string
}

// NewRedactWriter wraps next. Empty secrets are ignored.
func NewRedactWriter(next io.Writer, secrets ...string) *RedactWriter {
	kept := make([]string, 0, len(secrets))
	for _, s := range secrets {
		if s != "" {
			kept = append(kept, s)
		}
	}
	// Longest first so a key that contains another is masked whole.
	sort.Slice(kept, func(i, j int) bool { return len(kept[i]) > len(kept[j]) })
	return &RedactWriter{next: next, secrets: kept}
}

// Write implements io.Writer. It reports len(p) on success even when the
// masked record differs in length.
func (w *RedactWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.next, Redact(string(p), w.secrets...)); err != nil {
		return 0, err
	}
	return len(p), nil
}
