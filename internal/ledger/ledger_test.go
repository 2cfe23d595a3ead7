package ledger

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"ammcore/internal/safemath"
)

var (
	alice = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	usdc  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

func TestTransfer(t *testing.T) {
	book := Balances{}
	if err := book.Credit(alice, usdc, 100); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := book.Transfer(context.Background(), alice, bob, usdc, 40); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := book.Balance(alice, usdc); got != 60 {
		t.Fatalf("alice balance mismatch: %d != 60", got)
	}
	if got := book.Balance(bob, usdc); got != 40 {
		t.Fatalf("bob balance mismatch: %d != 40", got)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	book := Balances{}
	if err := book.Credit(alice, usdc, 10); err != nil {
		t.Fatalf("credit: %v", err)
	}
	err := book.Transfer(context.Background(), alice, bob, usdc, 11)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if book.Balance(alice, usdc) != 10 || book.Balance(bob, usdc) != 0 {
		t.Fatalf("balances changed on failure")
	}
}

func TestTransferRecipientOverflow(t *testing.T) {
	book := Balances{}
	_ = book.Credit(alice, usdc, 10)
	_ = book.Credit(bob, usdc, math.MaxUint64)
	err := book.Transfer(context.Background(), alice, bob, usdc, 1)
	if !errors.Is(err, safemath.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if book.Balance(alice, usdc) != 10 {
		t.Fatalf("sender debited on failure")
	}
}

func TestCloneIsDeep(t *testing.T) {
	book := Balances{}
	_ = book.Credit(alice, usdc, 5)
	copied := book.Clone()
	_ = copied.Credit(alice, usdc, 5)
	if book.Balance(alice, usdc) != 5 {
		t.Fatalf("clone shares state with original")
	}
}
