package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const (
	trackingPrefix = "TRK-"
	trackingLength = 8
	// Excludes 0, O, 1 and I.
	trackingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// TrackingCodeGenerator returns a fresh candidate tracking code.
type TrackingCodeGenerator func() (string, error)

// NewTrackingCode draws a random TRK- code.
func NewTrackingCode() (string, error) {
	var b strings.Builder
	b.Grow(len(trackingPrefix) + trackingLength)
	b.WriteString(trackingPrefix)

	max := big.NewInt(int64(len(trackingAlphabet)))
	for i := 0; i < trackingLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate tracking code: %w", err)
		}
		b.WriteByte(trackingAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NormalizeTrackingCode makes lookups case-insensitive.
func NormalizeTrackingCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
