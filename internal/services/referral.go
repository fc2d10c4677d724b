package services

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// GenerateReferralCode builds USERNAME_<base36 millis><6 random base36>,
// upper-cased. Uniqueness is enforced by the store; callers retry on
// collision.
func GenerateReferralCode(username string, now time.Time) (string, error) {
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(base36))))
		if err != nil {
			return "", err
		}
		suffix[i] = base36[n.Int64()]
	}
	code := username + "_" + strconv.FormatInt(now.UnixMilli(), 36) + string(suffix)
	return strings.ToUpper(code), nil
}
