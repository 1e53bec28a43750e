package utils

import "strings"

// Substrings of error payloads returned by the relay or the chain.
const (
	BLOCKHASH_NOT_FOUND   = "Blockhash not found"
	INSUFFICIENT_FUNDS    = "insufficient funds"
	INSUFFICIENT_LAMPORTS = "insufficient lamports"
)

// IsInsufficientFunds reports a payer that cannot cover the transfer, tip or fees.
func IsInsufficientFunds(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, INSUFFICIENT_FUNDS) || strings.Contains(msg, INSUFFICIENT_LAMPORTS)
}
