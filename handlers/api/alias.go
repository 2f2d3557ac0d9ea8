package api

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	letters      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphanumeric = letters + "0123456789"
	aliasSuffix  = 10
)

// GenerateAlias returns a fresh address on domain: a random letter, the current Unix
// time in milliseconds, then ten random alphanumerics.
func GenerateAlias(domain string) (string, error) {
	return generateAlias(domain, time.Now())
}

func generateAlias(domain string, now time.Time) (string, error) {
	domain = strings.TrimPrefix(strings.TrimSpace(domain), "@")
	if domain == "" {
		return "", errors.New("alias domain not configured")
	}

	var b strings.Builder
	first, err := randomString(letters, 1)
	if err != nil {
		return "", err
	}
	b.WriteString(first)
	fmt.Fprintf(&b, "%d", now.UnixMilli())

	suffix, err := randomString(alphanumeric, aliasSuffix)
	if err != nil {
		return "", err
	}
	b.WriteString(suffix)
	b.WriteString("@")
	b.WriteString(strings.ToLower(domain))
	return b.String(), nil
}

// randomString draws n characters from charset using crypto/rand.
func randomString(charset string, n int) (string, error) {
	limit := big.NewInt(int64(len(charset)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("error generating alias: %w", err)
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}
