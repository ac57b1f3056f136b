package sequence

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Coupon and reward codes are read aloud in tickets; both alphabets are
	// upper-case alphanumerics.
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	CouponSuffixLength = 6
	RewardCodeLength   = 12
)

// CouponCode returns "PREFIX-XXXXXX".
func CouponCode(prefix string) (string, error) {
	suffix, err := RandomCode(CouponSuffixLength)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", prefix, suffix), nil
}

// RewardCode returns a 12 character redemption code.
func RewardCode() (string, error) {
	return RandomCode(RewardCodeLength)
}

func RandomCode(n int) (string, error) {
	b := make([]byte, n)
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[num.Int64()]
	}
	return string(b), nil
}
