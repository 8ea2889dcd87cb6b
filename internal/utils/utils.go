// internal/utils/utils.go
package utils

import (
	"context"
	"math/rand"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ExtractDomain returns the host part of a URL.
func ExtractDomain(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// IsValidURL reports whether str is an absolute http(s) URL.
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// TruncateRunes cuts s to at most maxLen runes.
func TruncateRunes(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

var fileNameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// CleanFileName replaces characters that are awkward in file names.
func CleanFileName(name string) string {
	cleaned := strings.Trim(fileNameUnsafe.ReplaceAllString(name, "_"), "_")
	if cleaned == "" {
		return "output"
	}
	return cleaned
}

// SleepContext pauses for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RandomDuration returns a uniformly distributed duration in [min, max].
func RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)+1))
}
