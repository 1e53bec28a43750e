package bundle

import (
	"encoding/binary"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"bundler/config"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/mr-tron/base58"
)

func testAccounts() FundingAccounts {
	return FundingAccounts{
		Program:     solana.NewWallet().PublicKey(),
		FeeAccounts: [2]solana.PublicKey{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()},
	}
}

func testHash() solana.Hash {
	var h solana.Hash
	for i := range h {
		h[i] = byte(i + 1)
	}
	return h
}

func recipients(n int) []solana.PublicKey {
	out := make([]solana.PublicKey, n)
	for i := range out {
		out[i] = solana.NewWallet().PublicKey()
	}
	return out
}

func TestFundingDataLayout(t *testing.T) {
	data := EncodeFundingData(FundMany, 0x0102030405060708)
	if len(data) != FundingDataSize || FundingDataSize != 9 {
		t.Fatalf("expected 9 bytes, got %d", len(data))
	}
	if data[0] != byte(FundMany) {
		t.Fatalf("first byte must be the command tag, got %#x", data[0])
	}
	if got := binary.LittleEndian.Uint64(data[1:]); got != 0x0102030405060708 {
		t.Fatalf("tip not little-endian: %#x", got)
	}
	if data[1] != 0x08 {
		t.Fatalf("least significant byte must come first, got %#x", data[1])
	}
}

func TestFundingDataRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	tips := []uint64{0, 1, 5000, math.MaxInt64}
	for i := 0; i < 1000; i++ {
		tips = append(tips, r.Uint64N(1<<63))
	}
	for _, tip := range tips {
		for _, cmd := range []Command{FundMany, FundOne} {
			gotCmd, gotTip, err := DecodeFundingData(EncodeFundingData(cmd, tip))
			if err != nil {
				t.Fatalf("decode(%d) failed: %v", tip, err)
			}
			if gotCmd != cmd || gotTip != tip {
				t.Fatalf("round trip mismatch: (%v,%d) -> (%v,%d)", cmd, tip, gotCmd, gotTip)
			}
		}
	}
}

func TestDecodeFundingDataRejects(t *testing.T) {
	if _, _, err := DecodeFundingData([]byte{1, 2, 3}); !errors.Is(err, ErrFundingData) {
		t.Fatalf("short payload should fail, got %v", err)
	}
	bad := EncodeFundingData(FundOne, 1)
	bad[0] = 0x7f
	if _, _, err := DecodeFundingData(bad); !errors.Is(err, ErrFundingData) {
		t.Fatalf("unknown tag should fail, got %v", err)
	}
}

func TestFundingInstructionAccounts(t *testing.T) {
	accts := testAccounts()
	payer := solana.NewWallet().PublicKey()
	tip := solana.NewWallet().PublicKey()

	many, err := NewFundingInstruction(accts, payer, recipients(config.MAKER_BATCH_SIZE), tip, 1000)
	if err != nil {
		t.Fatalf("NewFundingInstruction(4) failed: %v", err)
	}
	one, err := NewFundingInstruction(accts, payer, recipients(1), tip, 1000)
	if err != nil {
		t.Fatalf("NewFundingInstruction(1) failed: %v", err)
	}
	if many.Command == one.Command {
		t.Fatalf("4-recipient and 1-recipient funding must use distinct tags")
	}
	if many.Command != FundMany || one.Command != FundOne {
		t.Fatalf("unexpected commands %v %v", many.Command, one.Command)
	}

	metas := many.Accounts()
	recipientSet := map[solana.PublicKey]bool{}
	for _, r := range many.Recipients {
		recipientSet[r] = true
	}
	var writableRecipients, tipEntries, feeEntries int
	for _, m := range metas {
		switch {
		case recipientSet[m.PublicKey]:
			if m.IsWritable && !m.IsSigner {
				writableRecipients++
			}
		case m.PublicKey.Equals(tip):
			tipEntries++
		case m.PublicKey.Equals(accts.FeeAccounts[0]) || m.PublicKey.Equals(accts.FeeAccounts[1]):
			feeEntries++
		}
	}
	if writableRecipients != 4 || tipEntries != 1 || feeEntries != 2 {
		t.Fatalf("unexpected layout: recipients=%d tip=%d fees=%d", writableRecipients, tipEntries, feeEntries)
	}
	if !metas[0].PublicKey.Equals(payer) || !metas[0].IsSigner {
		t.Fatalf("payer must be the first, signing account")
	}

	data, _ := many.Data()
	if cmd, tipLamports, err := DecodeFundingData(data); err != nil || cmd != FundMany || tipLamports != 1000 {
		t.Fatalf("unexpected payload: %v %d %v", cmd, tipLamports, err)
	}

	if _, err := NewFundingInstruction(accts, payer, recipients(2), tip, 1); err == nil {
		t.Fatalf("2 recipients should be rejected")
	}
}

func TestBuildFundingTx(t *testing.T) {
	payer := solana.NewWallet().PrivateKey
	ix, err := NewFundingInstruction(testAccounts(), payer.PublicKey(), recipients(4), solana.NewWallet().PublicKey(), 1000)
	if err != nil {
		t.Fatalf("NewFundingInstruction failed: %v", err)
	}

	if _, err := BuildFundingTx(ix, solana.Hash{}, payer); !errors.Is(err, ErrInvalidBlockhash) {
		t.Fatalf("zero blockhash must be rejected, got %v", err)
	}

	tx, err := BuildFundingTx(ix, testHash(), payer)
	if err != nil {
		t.Fatalf("BuildFundingTx failed: %v", err)
	}
	if len(tx.Message.Instructions) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(tx.Message.Instructions))
	}
	for i := 0; i < 2; i++ {
		prog := tx.Message.AccountKeys[tx.Message.Instructions[i].ProgramIDIndex]
		if !prog.Equals(computebudget.ProgramID) {
			t.Fatalf("instruction %d must be a compute budget instruction, got %s", i, prog)
		}
	}
	if tx.Message.Header.NumRequiredSignatures != 1 || len(tx.Signatures) != 1 {
		t.Fatalf("funding tx must be signed by the payer only")
	}
	if err := tx.VerifySignatures(); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}

	other := solana.NewWallet().PrivateKey
	if _, err := BuildFundingTx(ix, testHash(), other); err == nil {
		t.Fatalf("signing with a key other than the payer must fail")
	}
}

func swapTx(t *testing.T, payer solana.PublicKey) *solana.Transaction {
	t.Helper()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{},
		solana.TransactionPayer(payer),
	)
	if err != nil {
		t.Fatalf("NewTransaction failed: %v", err)
	}
	return tx
}

func TestBundleInvariants(t *testing.T) {
	payer := solana.NewWallet().PrivateKey
	ephemeral := solana.NewWallet().PrivateKey
	ix, _ := NewFundingInstruction(testAccounts(), payer.PublicKey(), []solana.PublicKey{ephemeral.PublicKey()}, solana.NewWallet().PublicKey(), 1000)
	funding, err := BuildFundingTx(ix, testHash(), payer)
	if err != nil {
		t.Fatalf("BuildFundingTx failed: %v", err)
	}

	swap := swapTx(t, ephemeral.PublicKey())
	if _, err := New(funding, ix, swap); !errors.Is(err, ErrBundleMismatch) {
		t.Fatalf("swap with a stale blockhash must be rejected, got %v", err)
	}

	if err := PrepareSwap(swap, testHash(), ephemeral); err != nil {
		t.Fatalf("PrepareSwap failed: %v", err)
	}
	b, err := New(funding, ix, swap)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	stranger := swapTx(t, solana.NewWallet().PublicKey())
	stranger.Message.RecentBlockhash = testHash()
	if _, err := New(funding, ix, stranger); !errors.Is(err, ErrBundleMismatch) {
		t.Fatalf("swap paid by an unfunded account must be rejected, got %v", err)
	}

	encoded, err := b.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(encoded) != 2 {
		t.Fatalf("expected 2 encoded transactions, got %d", len(encoded))
	}
	raw, err := base58.Decode(encoded[0])
	if err != nil {
		t.Fatalf("funding tx is not base58: %v", err)
	}
	want, _ := funding.MarshalBinary()
	if string(raw) != string(want) {
		t.Fatalf("funding tx must come first in the bundle")
	}
	if sigs := b.Signatures(); len(sigs) != 2 || sigs[0] != funding.Signatures[0].String() {
		t.Fatalf("unexpected signatures %v", sigs)
	}
}

func TestPrepareSwapWrongSigner(t *testing.T) {
	tx := swapTx(t, solana.NewWallet().PublicKey())
	if err := PrepareSwap(tx, testHash(), solana.NewWallet().PrivateKey); err == nil {
		t.Fatalf("expected fee payer mismatch")
	}
	if err := PrepareSwap(tx, solana.Hash{}, solana.NewWallet().PrivateKey); !errors.Is(err, ErrInvalidBlockhash) {
		t.Fatalf("expected ErrInvalidBlockhash, got %v", err)
	}
}
