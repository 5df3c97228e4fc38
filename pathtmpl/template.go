// Package pathtmpl turns a log file name template into concrete paths.
//
// A template is a path that may contain strftime directives (%Y, %m, %d, ...)
// and three host tags: %1 is the short host name, %2 the domain name and
// %3 the fully-qualified domain name. Host tags are expanded once, when the
// template is created. Time directives are expanded on every call to Filename.
//
//	/var/log/www/%1/access-%Y%m%d.log -> /var/log/www/web01/access-20240101.log
package pathtmpl

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"
)

// DefaultMaxLength is the longest path a template may produce.
// It matches PATH_MAX on Linux.
const DefaultMaxLength = 4096

// Custom errors returned by this package.
var (
	ErrPathTooLong = errors.New("path exceeds maximum length")
	ErrBadTemplate = errors.New("invalid file name template")
)

// Template is a compiled file name template. It is immutable and safe for concurrent use.
type Template struct {
	raw     string
	pattern string
	format  *strftime.Strftime
	match   *regexp.Regexp
	utc     bool
	maxLen  int
}

// directiveExprs is the text each directive can produce, as a regular expression.
// Anything not listed, the locale formats mostly, matches any text.
var directiveExprs = map[byte]string{ //nolint:gochecknoglobals
	'A': `[A-Za-z]+`, 'a': `[A-Za-z]{3}`, 'B': `[A-Za-z]+`, 'b': `[A-Za-z]{3}`, 'h': `[A-Za-z]{3}`,
	'C': `\d{2}`, 'D': `\d{2}/\d{2}/\d{2}`, 'd': `\d{2}`, 'e': `[ \d]\d`, 'F': `\d{4}-\d{2}-\d{2}`,
	'G': `\d{4}`, 'g': `\d{2}`, 'H': `\d{2}`, 'I': `\d{2}`, 'j': `\d{3}`, 'k': `[ \d]\d`, 'l': `[ \d]\d`,
	'M': `\d{2}`, 'm': `\d{2}`, 'n': `\n`, 'P': `[ap]m`, 'p': `[AP]M`, 'R': `\d{2}:\d{2}`,
	'r': `\d{2}:\d{2}:\d{2} [AP]M`, 'S': `\d{2}`, 's': `\d+`, 'T': `\d{2}:\d{2}:\d{2}`, 't': `\t`,
	'U': `\d{2}`, 'u': `\d`, 'V': `\d{2}`, 'v': `[ \d]\d-[A-Za-z]{3}-\d{4}`, 'W': `\d{2}`, 'w': `\d`,
	'Y': `\d{4}`, 'y': `\d{2}`, 'Z': `[A-Za-z0-9+-]+`, 'z': `[+-]\d{4}`, '%': `%`,
}

// Option changes how a Template evaluates.
type Option func(*Template)

// WithUTC evaluates time directives in UTC instead of local time.
func WithUTC(utc bool) Option {
	return func(t *Template) { t.utc = utc }
}

// WithMaxLength sets the longest path Filename may return. Zero or less uses DefaultMaxLength.
func WithMaxLength(size int) Option {
	return func(t *Template) {
		if size > 0 {
			t.maxLen = size
		}
	}
}

// New expands the host tags in raw and compiles the time directives.
func New(raw string, host Host, opts ...Option) (*Template, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty template", ErrBadTemplate)
	}

	tmpl := &Template{raw: raw, pattern: ExpandTags(raw, host), maxLen: DefaultMaxLength}
	for _, opt := range opts {
		opt(tmpl)
	}

	var err error

	tmpl.format, err = strftime.New(tmpl.pattern,
		strftime.WithUnixSeconds('s'),
		strftime.WithSpecification('G', strftime.AppendFunc(appendISOYear)),
		strftime.WithSpecification('g', strftime.AppendFunc(appendISOYearShort)),
		strftime.WithSpecification('P', strftime.AppendFunc(appendLowerAMPM)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadTemplate, raw, err) //nolint:errorlint
	}

	if tmpl.match, err = regexp.Compile(matchExpr(filepath.Clean(tmpl.pattern))); err != nil {
		return nil, fmt.Errorf("%w %q: %w", ErrBadTemplate, raw, err)
	}

	return tmpl, nil
}

// These glibc directives are missing from the strftime package.

func appendISOYear(b []byte, t time.Time) []byte {
	year, _ := t.ISOWeek()
	return append(b, fmt.Sprintf("%04d", year)...)
}

func appendISOYearShort(b []byte, t time.Time) []byte {
	year, _ := t.ISOWeek()
	return append(b, fmt.Sprintf("%02d", year%100)...) //nolint:mnd
}

func appendLowerAMPM(b []byte, t time.Time) []byte {
	if t.Hour() < 12 { //nolint:mnd
		return append(b, "am"...)
	}

	return append(b, "pm"...)
}

// matchExpr turns a pattern into an anchored regular expression.
func matchExpr(pattern string) string {
	var out strings.Builder

	out.WriteByte('^')

	for idx := 0; idx < len(pattern); idx++ {
		if pattern[idx] != '%' || idx+1 == len(pattern) {
			out.WriteString(regexp.QuoteMeta(pattern[idx : idx+1]))
			continue
		}

		idx++

		if expr, ok := directiveExprs[pattern[idx]]; ok {
			out.WriteString("(?:" + expr + ")")
		} else {
			out.WriteString(`.+?`)
		}
	}

	out.WriteByte('$')

	return out.String()
}

// Raw returns the template as it was given to New.
func (t *Template) Raw() string {
	return t.raw
}

// Pattern returns the template after host tag expansion.
func (t *Template) Pattern() string {
	return t.pattern
}

// Filename evaluates the template at now.
func (t *Template) Filename(now time.Time) (string, error) {
	if t.utc {
		now = now.UTC()
	} else {
		now = now.Local()
	}

	name := t.format.FormatString(now)
	if len(name) > t.maxLen {
		return "", fmt.Errorf("%w: %d>%d: %.64s...", ErrPathTooLong, len(name), t.maxLen, name)
	}

	return name, nil
}

// Match returns true if fileName is a path this template can produce.
// Glob finds candidates quickly, Match rejects the ones the template did not write.
// Both paths are cleaned first, so "./logs/x" and "logs/x" are the same file.
func (t *Template) Match(fileName string) bool {
	return t.match.MatchString(filepath.Clean(fileName))
}

// Glob returns a filepath.Glob pattern matching every path this template can produce.
// It is loose: one * stands in for each run of directives. Filter the results with Match.
func (t *Template) Glob() string {
	var (
		out  strings.Builder
		star bool
	)

	for idx := 0; idx < len(t.pattern); idx++ {
		char := t.pattern[idx]

		switch {
		case char == '%' && idx+1 < len(t.pattern) && t.pattern[idx+1] == '%':
			idx++
			star = false

			out.WriteByte('%')
		case char == '%':
			idx++

			if !star {
				out.WriteByte('*')
			}

			star = true
		default:
			star = false

			if strings.IndexByte(`*?[\`, char) >= 0 {
				out.WriteByte('\\')
			}

			out.WriteByte(char)
		}
	}

	return out.String()
}

// ExpandTags replaces %1, %2 and %3 with the host values.
// Any other %X pair is copied unchanged, so it can be read as a time directive later.
// Host values have their own % characters escaped.
func ExpandTags(raw string, host Host) string {
	var out strings.Builder

	out.Grow(len(raw) + len(host.FQDN))

	for {
		idx := strings.IndexByte(raw, '%')
		if idx < 0 || idx == len(raw)-1 {
			out.WriteString(raw)

			return out.String()
		}

		out.WriteString(raw[:idx])

		switch raw[idx+1] {
		case '1':
			out.WriteString(escape(host.Short))
		case '2':
			out.WriteString(escape(host.Domain))
		case '3':
			out.WriteString(escape(host.FQDN))
		default:
			out.WriteString(raw[idx : idx+2])
		}

		raw = raw[idx+2:]
	}
}

// HasTags returns true if raw contains %1, %2 or %3.
// Callers use it to skip a host lookup the template does not need.
func HasTags(raw string) bool {
	return ExpandTags(raw, UnknownHost()) != raw
}

func escape(s string) string {
	return strings.ReplaceAll(s, "%", "%%")
}
