package utils

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Request limits
const (
	MaxCandidates   = 64        // images accepted in one request
	MaxURLLength    = 4096      // longest src or page url
	MaxTypeLength   = 128       // longest declared MIME type
	MaxSizesLength  = 512       // longest sizes attribute
	MaxMessageBytes = 64 * 1024 // single WebSocket frame
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}

	if utf8.RuneCountInString(value) > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateURL checks that value is an absolute URL. The scheme is left to
// the fetch client, which rejects it with a dedicated error.
func ValidateURL(value, fieldName string) error {
	if err := ValidateString(value, fieldName, MaxURLLength, true); err != nil {
		return err
	}

	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s is not a valid url", fieldName)
	}
	if !u.IsAbs() {
		return fmt.Errorf("%s must be an absolute url", fieldName)
	}
	return nil
}

// ValidateCandidate validates one candidate image as sent by a client
func ValidateCandidate(src, mimeType, sizes string) error {
	if err := ValidateURL(src, "src"); err != nil {
		return err
	}
	if err := ValidateString(mimeType, "type", MaxTypeLength, false); err != nil {
		return err
	}
	return ValidateString(sizes, "sizes", MaxSizesLength, false)
}

// ValidateCandidateCount bounds the number of candidates in one request
func ValidateCandidateCount(n int) error {
	if n > MaxCandidates {
		return fmt.Errorf("too many images: %d exceeds %d", n, MaxCandidates)
	}
	return nil
}
