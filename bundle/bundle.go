package bundle

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// MaxBundleSize is the relay's limit of transactions per bundle.
const MaxBundleSize = 5

var ErrBundleMismatch = errors.New("inconsistent bundle")

// Bundle is a funding transaction followed by the swap transactions it funds,
// submitted atomically.
type Bundle struct {
	Funding    *solana.Transaction
	Recipients []solana.PublicKey
	Swaps      []*solana.Transaction
}

// New checks that every transaction shares the funding blockhash and that the i-th
// swap is paid by the i-th funded recipient.
func New(funding *solana.Transaction, ix *FundingInstruction, swaps ...*solana.Transaction) (*Bundle, error) {
	if funding == nil || ix == nil {
		return nil, fmt.Errorf("%w: missing funding transaction", ErrBundleMismatch)
	}
	if len(swaps) == 0 {
		return nil, fmt.Errorf("%w: no swap transactions", ErrBundleMismatch)
	}
	if 1+len(swaps) > MaxBundleSize {
		return nil, fmt.Errorf("%w: %d transactions exceed the limit of %d", ErrBundleMismatch, 1+len(swaps), MaxBundleSize)
	}
	if len(swaps) != len(ix.Recipients) {
		return nil, fmt.Errorf("%w: %d recipients funded for %d swaps", ErrBundleMismatch, len(ix.Recipients), len(swaps))
	}
	hash := funding.Message.RecentBlockhash
	for i, s := range swaps {
		if s.Message.RecentBlockhash != hash {
			return nil, fmt.Errorf("%w: swap %d uses blockhash %s, funding uses %s", ErrBundleMismatch, i, s.Message.RecentBlockhash, hash)
		}
		if len(s.Message.AccountKeys) == 0 || !s.Message.AccountKeys[0].Equals(ix.Recipients[i]) {
			return nil, fmt.Errorf("%w: swap %d is not paid by funded recipient %s", ErrBundleMismatch, i, ix.Recipients[i])
		}
	}
	return &Bundle{Funding: funding, Recipients: ix.Recipients, Swaps: swaps}, nil
}

// Transactions returns the funding transaction first, then the swaps.
func (b *Bundle) Transactions() []*solana.Transaction {
	out := make([]*solana.Transaction, 0, 1+len(b.Swaps))
	out = append(out, b.Funding)
	return append(out, b.Swaps...)
}

// Encode serializes every transaction in bundle order.
func (b *Bundle) Encode() ([]string, error) {
	txs := b.Transactions()
	out := make([]string, 0, len(txs))
	for i, tx := range txs {
		s, err := EncodeTransaction(tx)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Signatures lists the first signature of every transaction in bundle order.
func (b *Bundle) Signatures() []string {
	txs := b.Transactions()
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		if len(tx.Signatures) > 0 {
			out = append(out, tx.Signatures[0].String())
		}
	}
	return out
}
