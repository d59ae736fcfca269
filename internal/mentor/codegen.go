package mentor

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	codePrefix   = "MNTR-"
	codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeBodyLen  = 5
)

// GenerateCode returns a token like MNTR-AB12C34: five base36 characters and a two-digit
// suffix in 10..99. Uniqueness is not checked here; IssueGenerated retries on collision.
func GenerateCode() string {
	var sb strings.Builder
	sb.WriteString(codePrefix)
	for i := 0; i < codeBodyLen; i++ {
		sb.WriteByte(codeAlphabet[randInt(len(codeAlphabet))])
	}
	suffix := 10 + randInt(90)
	sb.WriteByte(byte('0' + suffix/10))
	sb.WriteByte(byte('0' + suffix%10))
	return sb.String()
}

func randInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}

// NormalizeCode trims and upper-cases a code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
