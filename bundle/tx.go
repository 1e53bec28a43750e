package bundle

import (
	"errors"
	"fmt"

	"bundler/config"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/mr-tron/base58"
)

var ErrInvalidBlockhash = errors.New("missing or invalid recent blockhash")

// PriorityFeeInstructions pins the compute unit price and limit of a funding
// transaction so its fee does not follow network congestion.
func PriorityFeeInstructions() []solana.Instruction {
	return []solana.Instruction{
		computebudget.NewSetComputeUnitPriceInstruction(config.FUNDING_CU_PRICE_MICROLAMPORTS).Build(),
		computebudget.NewSetComputeUnitLimitInstruction(config.FUNDING_CU_LIMIT).Build(),
	}
}

// BuildTransaction assembles and signs a transaction whose only signer is the fee payer.
func BuildTransaction(instructions []solana.Instruction, blockhash solana.Hash, signer solana.PrivateKey) (*solana.Transaction, error) {
	payer := signer.PublicKey()
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &signer
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// BuildFundingTx prepends the priority fee instructions to the funding instruction
// and signs with the payer. The ephemeral recipients do not sign.
func BuildFundingTx(ix *FundingInstruction, blockhash solana.Hash, payer solana.PrivateKey) (*solana.Transaction, error) {
	if blockhash == (solana.Hash{}) {
		return nil, ErrInvalidBlockhash
	}
	if !payer.PublicKey().Equals(ix.Payer) {
		return nil, fmt.Errorf("funding payer %s does not match signer %s", ix.Payer, payer.PublicKey())
	}
	instructions := append(PriorityFeeInstructions(), ix)
	return BuildTransaction(instructions, blockhash, payer)
}

// PrepareSwap points an aggregator transaction at the shared blockhash and signs it
// with the ephemeral signer, which must be its fee payer.
func PrepareSwap(tx *solana.Transaction, blockhash solana.Hash, signer solana.PrivateKey) error {
	if blockhash == (solana.Hash{}) {
		return ErrInvalidBlockhash
	}
	if len(tx.Message.AccountKeys) == 0 {
		return errors.New("swap transaction has no accounts")
	}
	pub := signer.PublicKey()
	if !tx.Message.AccountKeys[0].Equals(pub) {
		return fmt.Errorf("swap fee payer %s is not signer %s", tx.Message.AccountKeys[0], pub)
	}
	tx.Message.RecentBlockhash = blockhash
	tx.Signatures = nil
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &signer
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to sign swap transaction: %w", err)
	}
	return nil
}

// EncodeTransaction serializes a signed transaction as base58 for the relay.
func EncodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base58.Encode(raw), nil
}
