package logger

import (
	"fmt"
	"io"
	"regexp"
)

const redacted = "[REDACTED]"

// rule masks the secret group of every match. The text around the secret
// group stays so log lines still show where a link was.
type rule struct {
	re     *regexp.Regexp
	prefix int // submatch holding the kept prefix, 0 for none
	secret int // submatch holding the masked part, 0 for the whole match
	suffix int // submatch holding the kept suffix, 0 for none
}

// Redactor masks workspace contents that end up in log lines. Link tokens
// carry the full source of every file, so they never reach the log as is.
type Redactor struct {
	rules []rule
}

// NewRedactor creates a redactor masking share-link tokens
func NewRedactor() *Redactor {
	return &Redactor{
		rules: []rule{
			// ?state= and &link= query parameters, possibly URL-escaped
			{re: regexp.MustCompile(`((?:state|link)=)([A-Za-z0-9_%#-]{24,})`), prefix: 1, secret: 2},

			// token fields of JSON log lines
			{re: regexp.MustCompile(`("(?:token|link|state)":")([^"]{24,})(")`), prefix: 1, secret: 2, suffix: 3},

			// '#' followed by a base64url token
			{re: regexp.MustCompile(`(#)([A-Za-z0-9_-]{24,})`), prefix: 1, secret: 2},
		},
	}
}

// AddPattern masks every match of pattern as a whole
func (r *Redactor) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.rules = append(r.rules, rule{re: re})
	return nil
}

// Redact masks every secret in s. Masked tokens keep their length so
// truncated links can still be told apart from full ones.
func (r *Redactor) Redact(s string) string {
	for _, rl := range r.rules {
		s = rl.re.ReplaceAllStringFunc(s, func(match string) string {
			if rl.secret == 0 {
				return redacted
			}
			groups := rl.re.FindStringSubmatch(match)
			out := ""
			if rl.prefix > 0 {
				out += groups[rl.prefix]
			}
			out += fmt.Sprintf("[REDACTED %d chars]", len(groups[rl.secret]))
			if rl.suffix > 0 {
				out += groups[rl.suffix]
			}
			return out
		})
	}
	return s
}

// Wrap returns a writer that redacts before writing to w
func (r *Redactor) Wrap(w io.Writer) io.Writer {
	return &redactingWriter{next: w, redactor: r}
}

type redactingWriter struct {
	next     io.Writer
	redactor *Redactor
}

// Write reports len(p) on success; the redacted line is usually shorter
// and zerolog treats n < len(p) as a failed write.
func (w *redactingWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(w.next, w.redactor.Redact(string(p))); err != nil {
		return 0, err
	}
	return len(p), nil
}
