package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrParse is matched by every *ParseError via errors.Is
var ErrParse = errors.New("unparseable duration")

// ParseError is returned by ParseDurationStrict
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse duration %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrParse
}

// maxDurationTokens is hours, minutes and seconds
const maxDurationTokens = 3

// ParseDuration converts a timestamp to milliseconds.
//
// It accepts a bare number of seconds ("5", "62.5") or an h:m:s.ms shaped
// sequence whose numeric tokens are separated by any run of non-digit
// characters ("00:01:02.500", "1h02m03s"). Anything it cannot read yields 0,
// which callers treat as "no duration seen yet".
func ParseDuration(text string) int64 {
	ms, err := ParseDurationStrict(text)
	if err != nil {
		return 0
	}
	return ms
}

// ParseDurationStrict is ParseDuration that reports failures instead of
// returning 0.
func ParseDurationStrict(text string) (int64, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, &ParseError{Input: text, Reason: "empty input"}
	}
	if strings.HasPrefix(s, "-") {
		return 0, &ParseError{Input: text, Reason: "negative duration"}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64/1000 {
			return 0, &ParseError{Input: text, Reason: "out of range"}
		}
		return int64(math.Round(f * 1000)), nil
	}

	tokens, seps := splitDigitRuns(s)
	if len(tokens) == 0 {
		return 0, &ParseError{Input: text, Reason: "no digits"}
	}

	var fracMs int64
	last := len(tokens) - 1
	if last > 0 && strings.Contains(seps[last], ".") {
		fracMs = fractionToMillis(tokens[last])
		tokens = tokens[:last]
	}
	if len(tokens) > maxDurationTokens {
		return 0, &ParseError{Input: text, Reason: "too many fields"}
	}

	var seconds int64
	for _, tok := range tokens {
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil || seconds > (math.MaxInt64-n)/60 {
			return 0, &ParseError{Input: text, Reason: "field out of range"}
		}
		seconds = seconds*60 + n
	}
	if seconds > (math.MaxInt64-999)/1000 {
		return 0, &ParseError{Input: text, Reason: "out of range"}
	}

	return seconds*1000 + fracMs, nil
}

// splitDigitRuns returns the digit runs of s and, for each run, the
// non-digit text that preceded it.
func splitDigitRuns(s string) (tokens, seps []string) {
	var sep strings.Builder
	i := 0
	for i < len(s) {
		if !isDigit(s[i]) {
			sep.WriteByte(s[i])
			i++
			continue
		}
		j := i
		for j < len(s) && isDigit(s[j]) {
			j++
		}
		tokens = append(tokens, s[i:j])
		seps = append(seps, sep.String())
		sep.Reset()
		i = j
	}
	return tokens, seps
}

// fractionToMillis reads digits as a decimal fraction of a second.
// ".5" is 500ms, ".25" is 250ms, anything past millisecond precision is
// truncated.
func fractionToMillis(digits string) int64 {
	if len(digits) > 3 {
		digits = digits[:3]
	}
	for len(digits) < 3 {
		digits += "0"
	}
	n, _ := strconv.ParseInt(digits, 10, 64)
	return n
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// FormatDuration renders milliseconds as hh:mm:ss.mmm. Negative input is
// treated as 0.
func FormatDuration(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3600000
	m := ms / 60000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

// ToSeconds floors milliseconds to whole seconds
func ToSeconds(ms int64) int64 {
	return ms / 1000
}
