package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that raw is an absolute http(s) URL with a host.
// It is the entry gate for ingestion; purge and store keys are derived
// from the URL, so a malformed one must never reach the store.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("validate: %w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("validate: %w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("validate: %w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("validate: %w: missing host", ErrInvalidURL)
	}
	return nil
}

// ValidateQuestion checks a retrieval question before embedding.
func ValidateQuestion(q string) error {
	if strings.TrimSpace(q) == "" {
		return fmt.Errorf("validate: %w: empty question", ErrInvalidQuestion)
	}
	return nil
}
