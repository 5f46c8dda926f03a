package correlate

import (
	"errors"
	"strings"
)

// IDToken is the placeholder that marks the identifier capture position
// inside a filename pattern, e.g. "FakeWaveform_{id}_truth.csv".
const IDToken = "{id}"

// Errors returned by pattern parsing.
var (
	// ErrMissingIDToken is returned when a pattern has no {id} placeholder.
	ErrMissingIDToken = errors.New("pattern must contain exactly one {id} token")

	// ErrEmptyPattern is returned when a pattern is blank.
	ErrEmptyPattern = errors.New("pattern is empty")
)

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Pattern is a filename pattern with a single identifier capture position.
//
// The text before {id} must be a literal filename prefix. The text after
// {id} may contain glob metacharacters (e.g. "*.root") when the pattern is
// used for lookup rather than extraction.
type Pattern struct {
	raw    string
	prefix string
	suffix string
}

// ParsePattern compiles a filename pattern containing exactly one {id} token.
func ParsePattern(raw string) (*Pattern, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &PatternError{Pattern: raw, Err: ErrEmptyPattern}
	}
	if strings.Count(raw, IDToken) != 1 {
		return nil, &PatternError{Pattern: raw, Err: ErrMissingIDToken}
	}
	idx := strings.Index(raw, IDToken)
	return &Pattern{
		raw:    raw,
		prefix: raw[:idx],
		suffix: raw[idx+len(IDToken):],
	}, nil
}

// String returns the original pattern text.
func (p *Pattern) String() string {
	return p.raw
}

// Glob returns a glob expression matching any identifier value.
func (p *Pattern) Glob() string {
	return p.prefix + "*" + p.suffix
}

// Resolve substitutes an identifier into the pattern. The result may still
// contain glob metacharacters from the suffix.
func (p *Pattern) Resolve(id string) string {
	return p.prefix + id + p.suffix
}

// Extract pulls the identifier out of a filename. Extraction requires a
// literal suffix: a pattern whose suffix contains glob metacharacters
// will not match real filenames and is only usable for lookup.
func (p *Pattern) Extract(name string) (string, bool) {
	if !strings.HasPrefix(name, p.prefix) {
		return "", false
	}
	rest := name[len(p.prefix):]
	if !strings.HasSuffix(rest, p.suffix) {
		return "", false
	}
	id := rest[:len(rest)-len(p.suffix)]
	if id == "" {
		return "", false
	}
	return id, true
}
