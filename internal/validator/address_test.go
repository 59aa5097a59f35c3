package validator

import (
	"math/rand"
	"strings"
	"testing"

	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/pkg/errors"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

func randomTronAddress(r *rand.Rand) string {
	var b strings.Builder
	b.WriteByte('T')
	for i := 0; i < 33; i++ {
		b.WriteByte(base58Alphabet[r.Intn(len(base58Alphabet))])
	}
	return b.String()
}

func TestValidate_AcceptsPatternMatches(t *testing.T) {
	if err := Validate(models.NetworkTron, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	r := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		addr := randomTronAddress(r)
		if err := Validate(models.NetworkTron, addr); err != nil {
			t.Fatalf("Validate(%q): %v", addr, err)
		}
	}
}

func TestValidate_RejectsMalformed(t *testing.T) {
	valid := "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"
	tests := map[string]string{
		"empty":          "",
		"too short":      valid[:33],
		"too long":       valid + "a",
		"wrong prefix":   "A" + valid[1:],
		"lowercase t":    "t" + valid[1:],
		"contains zero":  valid[:10] + "0" + valid[11:],
		"contains O":     valid[:10] + "O" + valid[11:],
		"contains I":     valid[:10] + "I" + valid[11:],
		"contains l":     valid[:10] + "l" + valid[11:],
		"contains space": valid[:10] + " " + valid[11:],
		"hex address":    "41a614f803b6fd780986a42c78ec9c7f77e6ded13c",
	}

	for name, addr := range tests {
		t.Run(name, func(t *testing.T) {
			err := Validate(models.NetworkTron, addr)
			if !errors.HasCode(err, errors.ErrInvalidAddress) {
				t.Fatalf("Validate(%q) = %v, want INVALID_ADDRESS", addr, err)
			}
		})
	}
}

func TestValidate_UnsupportedNetwork(t *testing.T) {
	err := Validate(models.Network("ethereum"), "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t")
	if !errors.HasCode(err, errors.ErrUnsupportedNetwork) {
		t.Fatalf("Validate = %v, want UNSUPPORTED_NETWORK", err)
	}
}
