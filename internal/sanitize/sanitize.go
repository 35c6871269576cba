// Package sanitize validates property keys and values and repairs values
// that exceed the length caps.
package sanitize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	v1 "github.com/aevon-lab/trackpipe/internal/api/v1"
	perr "github.com/aevon-lab/trackpipe/internal/core/errors"
)

const (
	// MaxKeyLength is the longest accepted property key or event name.
	MaxKeyLength = 100

	// MaxValueLength is the cap for string values before truncation.
	MaxValueLength = 8191

	// MaxLoginIDLength is the longest accepted login id.
	MaxLoginIDLength = 255

	// CrashReasonKey gets twice the normal value cap.
	CrashReasonKey = "app_crashed_reason"

	// TruncationMarker is appended to every truncated string.
	TruncationMarker = "$"
)

var keyPattern = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)

// reservedNames may not be used as property keys or event names, in any casing.
var reservedNames = map[string]struct{}{
	"distinct_id": {},
	"original_id": {},
	"time":        {},
	"properties":  {},
	"id":          {},
	"first_id":    {},
	"second_id":   {},
	"users":       {},
	"events":      {},
	"event":       {},
	"user_id":     {},
	"date":        {},
	"datetime":    {},
}

// Sanitizer validates keys and values. The zero value uses the default caps.
type Sanitizer struct {
	// MaxValueLength overrides the string cap when > 0.
	MaxValueLength int
}

func New(maxValueLength int) *Sanitizer {
	return &Sanitizer{MaxValueLength: maxValueLength}
}

func (s *Sanitizer) valueCap(key string) int {
	limit := MaxValueLength
	if s != nil && s.MaxValueLength > 0 {
		limit = s.MaxValueLength
	}
	if key == CrashReasonKey {
		return limit * 2
	}
	return limit
}

// ValidateKey checks a property key or event name.
func (s *Sanitizer) ValidateKey(key string) error {
	if key == "" {
		return perr.NewInvalidKeyError(key, "key is empty")
	}
	if len(key) > MaxKeyLength {
		return perr.NewInvalidKeyError(key, fmt.Sprintf("key is longer than %d characters", MaxKeyLength))
	}
	if !keyPattern.MatchString(key) {
		return perr.NewInvalidKeyError(key, "key must start with a letter, '_' or '$' and contain only letters, digits, '_' or '$'")
	}
	if _, reserved := reservedNames[strings.ToLower(key)]; reserved {
		return perr.NewInvalidKeyError(key, "key is a reserved name")
	}
	return nil
}

// ValidateValue checks that x converts to one of the accepted value shapes.
func (s *Sanitizer) ValidateValue(key string, x any) (v1.Value, error) {
	v, err := v1.ValueOf(x)
	if err != nil {
		return v1.Value{}, perr.NewInvalidTypeError(key, err.Error())
	}
	if err := s.checkValue(key, v); err != nil {
		return v1.Value{}, err
	}
	return v, nil
}

func (s *Sanitizer) checkValue(key string, v v1.Value) error {
	switch v.Kind() {
	case v1.ValueString, v1.ValueNumber, v1.ValueBool, v1.ValueDate:
		return nil
	case v1.ValueList:
		items, _ := v.AsList()
		for i, item := range items {
			if k := item.Kind(); k != v1.ValueString && k != v1.ValueNumber {
				return perr.NewInvalidTypeError(key, fmt.Sprintf("list item %d is %s, want string or number", i, k))
			}
		}
		return nil
	default:
		return perr.NewInvalidTypeError(key, "value is not a string, number, boolean, date or list")
	}
}

// ValidatePropertyTypes checks every key and value of doc. A nil document is valid.
func (s *Sanitizer) ValidatePropertyTypes(doc *v1.Properties) error {
	var firstErr error
	doc.Range(func(key string, v v1.Value) bool {
		if err := s.ValidateKey(key); err != nil {
			firstErr = err
			return false
		}
		if err := s.checkValue(key, v); err != nil {
			firstErr = err
			return false
		}
		return true
	})
	return firstErr
}

// ValidateLoginID checks a proposed login id.
func (s *Sanitizer) ValidateLoginID(id string) error {
	if strings.TrimSpace(id) == "" {
		return perr.NewInvalidTypeError("login_id", "login id is empty")
	}
	if utf8.RuneCountInString(id) > MaxLoginIDLength {
		return perr.NewInvalidTypeError("login_id", fmt.Sprintf("login id is longer than %d characters", MaxLoginIDLength))
	}
	return nil
}

// Truncate caps a single string value for key. The returned flag reports
// whether the value was cut.
func (s *Sanitizer) Truncate(key, value string) (string, bool) {
	limit := s.valueCap(key)
	if utf8.RuneCountInString(value) <= limit {
		return value, false
	}
	runes := []rune(value)
	return string(runes[:limit]) + TruncationMarker, true
}

// Repair truncates every over-long string value of doc in place. It never
// changes a value's kind and never fails.
func (s *Sanitizer) Repair(doc *v1.Properties) {
	if doc == nil {
		return
	}
	for _, key := range doc.Keys() {
		v, _ := doc.Get(key)
		str, ok := v.AsString()
		if !ok {
			continue
		}
		if cut, truncated := s.Truncate(key, str); truncated {
			slog.Debug("[Sanitizer] Property value truncated",
				"key", key,
				"length", utf8.RuneCountInString(str),
				"cap", s.valueCap(key))
			doc.Set(key, v1.String(cut))
		}
	}
}
