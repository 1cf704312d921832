// Package txid mints the human-legible identifiers exposed at the API
// boundary. Every id carries a kind prefix so a refund is visually
// distinguishable from a purchase in logs and support chats.
package txid

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

const (
	PrefixOrder    = "ORD"
	PrefixPurchase = "TXN"
	PrefixDeposit  = "DEP"
	PrefixBonus    = "BONUS"
	PrefixReferral = "REF"
	PrefixRefund   = "REFUND"
	PrefixAdjust   = "ADJ"
)

const suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// New returns "<PREFIX>-<base36 millis><4 random chars>". The random tail
// keeps ids unique when two are minted in the same millisecond.
func New(prefix string) string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	var suffix [4]byte
	for i := range suffix {
		suffix[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return fmt.Sprintf("%s-%s%s", prefix, ts, suffix[:])
}

// Prefix returns the kind prefix of an id, or "" when the id is malformed.
func Prefix(id string) string {
	idx := strings.IndexByte(id, '-')
	if idx <= 0 {
		return ""
	}
	return id[:idx]
}
