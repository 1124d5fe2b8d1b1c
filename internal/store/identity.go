package store

import (
	"crypto/md5" //nolint:gosec // content fingerprint only
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	failureIDLen   = 12
	maxFileNameLen = 200
	// Leaves room for the extension and the temp-file suffix within the
	// common 255-byte file name limit.
	maxFileNameBytes = 220
	recordExt      = ".json"
	unnamedRecord  = "unnamed"
)

// FailureID derives the stable identity of a failure from its test-case name
// and error text: the first 12 hex characters of md5("<testCase>:<error>").
func FailureID(testCase, errText string) string {
	sum := md5.Sum([]byte(testCase + ":" + errText)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:failureIDLen]
}

// TestCaseFileName maps a test-case name to its record file name. Characters
// other than letters, digits, space, hyphen and underscore are dropped,
// spaces become underscores and the result is capped at 200 characters and
// 220 bytes.
func TestCaseFileName(testCase string) string {
	return safeName(testCase) + recordExt
}

func safeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
	if runes := []rune(safe); len(runes) > maxFileNameLen {
		safe = string(runes[:maxFileNameLen])
	}
	for len(safe) > maxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(safe)
		safe = safe[:len(safe)-size]
	}
	if safe == "" {
		return unnamedRecord
	}
	return safe
}
