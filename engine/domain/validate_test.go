package domain

import (
	"errors"
	"testing"
)

func TestValidateURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{"http", "http://example.com/docs", true},
		{"https", "https://example.com", true},
		{"query and fragment", "https://example.com/a?b=1#c", true},
		{"empty", "", false},
		{"whitespace", "   ", false},
		{"relative", "/about", false},
		{"no scheme", "example.com/page", false},
		{"ftp", "ftp://example.com/file", false},
		{"scheme only", "https://", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateURL(tc.url)
			if tc.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("expected ErrInvalidURL, got %v", err)
				}
			}
		})
	}
}

func TestValidateQuestion(t *testing.T) {
	if err := ValidateQuestion("what is this site about?"); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := ValidateQuestion("  \n"); !errors.Is(err, ErrInvalidQuestion) {
		t.Fatalf("expected ErrInvalidQuestion for blank question, got %v", err)
	}
}

func TestPipelineErrorUnwrap(t *testing.T) {
	err := NewPipelineError("ingest", "http://example.com", ErrEmptyBody)
	if !errors.Is(err, ErrEmptyBody) {
		t.Fatal("expected ErrEmptyBody through Unwrap")
	}
	if err.Error() == "" {
		t.Fatal("expected message")
	}
}
