package booking

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// PNRAlphabet leaves out 0/O and 1/I so codes survive being read aloud. Its
// 32 symbols divide 256, so the byte-to-symbol mapping has no bias.
const PNRAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const DefaultPNRLength = 6

type PNRGenerator interface {
	Next() (string, error)
}

// RandomPNR draws codes from crypto/rand. Uniqueness is checked by the caller
// against the ledger.
type RandomPNR struct {
	length int
}

func NewRandomPNR(length int) *RandomPNR {
	if length <= 0 {
		length = DefaultPNRLength
	}
	return &RandomPNR{length: length}
}

func (g *RandomPNR) Next() (string, error) {
	code := make([]byte, g.length)
	if _, err := rand.Read(code); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i := range code {
		code[i] = PNRAlphabet[int(code[i])%len(PNRAlphabet)]
	}
	return string(code), nil
}

// NormalizePNR makes PNR lookups case-insensitive.
func NormalizePNR(pnr string) string {
	return strings.ToUpper(strings.TrimSpace(pnr))
}
