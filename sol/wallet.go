package sol

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

// LoadPrivateKey reads the funding key from PRIVATE_KEY, either a base58 secret
// or the path of a solana-keygen JSON file.
func LoadPrivateKey() (solana.PrivateKey, error) {
	v := strings.TrimSpace(viper.GetString("PRIVATE_KEY"))
	if v == "" {
		return nil, errors.New("PRIVATE_KEY not set")
	}
	if strings.HasSuffix(v, ".json") {
		if _, err := os.Stat(v); err != nil {
			return nil, fmt.Errorf("keypair file: %w", err)
		}
		return solana.PrivateKeyFromSolanaKeygenFile(v)
	}
	return solana.PrivateKeyFromBase58(v)
}

// NewEphemeralSigners generates n fresh single-use keypairs.
func NewEphemeralSigners(n int) ([]solana.PrivateKey, error) {
	out := make([]solana.PrivateKey, 0, n)
	for i := 0; i < n; i++ {
		k, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral signer: %w", err)
		}
		out = append(out, k)
	}
	return out, nil
}
