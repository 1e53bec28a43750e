package bundle

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"bundler/config"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

// Command is the first byte of the funding instruction payload.
type Command uint8

const (
	FundMany Command = 0x01 // funds config.MAKER_BATCH_SIZE recipients
	FundOne  Command = 0x02
)

func (c Command) String() string {
	switch c {
	case FundMany:
		return "fund_many"
	case FundOne:
		return "fund_one"
	}
	return fmt.Sprintf("command(%d)", uint8(c))
}

// FundingDataSize is the payload length: command tag + u64 tip.
const FundingDataSize = 1 + 8

var ErrFundingData = errors.New("invalid funding instruction data")

// EncodeFundingData lays out the payload as the command tag followed by the tip in
// little-endian order.
func EncodeFundingData(cmd Command, tipLamports uint64) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	_ = enc.WriteUint8(uint8(cmd))
	_ = enc.WriteUint64(tipLamports, binary.LittleEndian)
	return buf.Bytes()
}

func DecodeFundingData(data []byte) (Command, uint64, error) {
	if len(data) != FundingDataSize {
		return 0, 0, fmt.Errorf("%w: expected %d bytes, got %d", ErrFundingData, FundingDataSize, len(data))
	}
	dec := bin.NewBinDecoder(data)
	tag, err := dec.ReadUint8()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrFundingData, err)
	}
	tip, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrFundingData, err)
	}
	cmd := Command(tag)
	if cmd != FundMany && cmd != FundOne {
		return 0, 0, fmt.Errorf("%w: unknown command %d", ErrFundingData, tag)
	}
	return cmd, tip, nil
}

// FundingAccounts are the fixed accounts of the funding program.
type FundingAccounts struct {
	Program     solana.PublicKey
	FeeAccounts [config.FUNDING_FEE_ACCOUNT_NUM]solana.PublicKey
}

// GetFundingAccounts reads funding.program and funding.fee-accounts from the config.
func GetFundingAccounts() (FundingAccounts, error) {
	var out FundingAccounts
	program := viper.GetString("funding.program")
	if program == "" {
		return out, errors.New("funding.program not set in config")
	}
	pk, err := solana.PublicKeyFromBase58(program)
	if err != nil {
		return out, fmt.Errorf("funding.program: %w", err)
	}
	out.Program = pk

	fees := viper.GetStringSlice("funding.fee-accounts")
	if len(fees) != config.FUNDING_FEE_ACCOUNT_NUM {
		return out, fmt.Errorf("funding.fee-accounts must list %d accounts, got %d", config.FUNDING_FEE_ACCOUNT_NUM, len(fees))
	}
	for i, f := range fees {
		pk, err := solana.PublicKeyFromBase58(f)
		if err != nil {
			return out, fmt.Errorf("funding.fee-accounts[%d]: %w", i, err)
		}
		out.FeeAccounts[i] = pk
	}
	return out, nil
}

// FundingInstruction pays the relay tip and funds one or config.MAKER_BATCH_SIZE
// ephemeral recipients from the payer.
type FundingInstruction struct {
	Program     solana.PublicKey
	Payer       solana.PublicKey
	Recipients  []solana.PublicKey
	TipAccount  solana.PublicKey
	TipLamports uint64
	FeeAccounts [config.FUNDING_FEE_ACCOUNT_NUM]solana.PublicKey
	Command     Command
}

func NewFundingInstruction(accts FundingAccounts, payer solana.PublicKey, recipients []solana.PublicKey, tipAccount solana.PublicKey, tipLamports uint64) (*FundingInstruction, error) {
	var cmd Command
	switch len(recipients) {
	case 1:
		cmd = FundOne
	case config.MAKER_BATCH_SIZE:
		cmd = FundMany
	default:
		return nil, fmt.Errorf("funding supports 1 or %d recipients, got %d", config.MAKER_BATCH_SIZE, len(recipients))
	}
	rs := make([]solana.PublicKey, len(recipients))
	copy(rs, recipients)
	return &FundingInstruction{
		Program:     accts.Program,
		Payer:       payer,
		Recipients:  rs,
		TipAccount:  tipAccount,
		TipLamports: tipLamports,
		FeeAccounts: accts.FeeAccounts,
		Command:     cmd,
	}, nil
}

func (ix *FundingInstruction) ProgramID() solana.PublicKey {
	return ix.Program
}

// Accounts: payer, recipients, tip account, fee accounts, system program.
func (ix *FundingInstruction) Accounts() []*solana.AccountMeta {
	metas := make([]*solana.AccountMeta, 0, len(ix.Recipients)+5)
	metas = append(metas, solana.Meta(ix.Payer).WRITE().SIGNER())
	for _, r := range ix.Recipients {
		metas = append(metas, solana.Meta(r).WRITE())
	}
	metas = append(metas, solana.Meta(ix.TipAccount).WRITE())
	for _, f := range ix.FeeAccounts {
		metas = append(metas, solana.Meta(f).WRITE())
	}
	metas = append(metas, solana.Meta(solana.SystemProgramID))
	return metas
}

func (ix *FundingInstruction) Data() ([]byte, error) {
	return EncodeFundingData(ix.Command, ix.TipLamports), nil
}
