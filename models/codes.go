package models

import (
	"crypto/rand"
	"math/big"
)

const upperAlnum = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomUpperAlnum returns n random characters from [A-Z0-9]
func RandomUpperAlnum(n int) string {
	max := big.NewInt(int64(len(upperAlnum)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic(err)
		}
		b[i] = upperAlnum[idx.Int64()]
	}
	return string(b)
}
