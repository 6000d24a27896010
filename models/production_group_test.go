package models

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

func ledger(groupQty, manufactured, balance int64) ledgerState {
	return ledgerState{
		GroupQty:     decimal.NewFromInt(groupQty),
		Manufactured: decimal.NewFromInt(manufactured),
		Balance:      decimal.NewFromInt(balance),
	}
}

func TestApplyDeltaMath(t *testing.T) {
	next, completed, err := applyDelta(ledger(100, 0, 100), decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if completed {
		t.Fatalf("group should not be completed at balance 60")
	}
	if !next.Manufactured.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected manufactured=40; got %s", next.Manufactured)
	}
	if !next.Balance.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected balance=60; got %s", next.Balance)
	}
	if !next.Manufactured.Add(next.Balance).Equal(next.GroupQty) {
		t.Fatalf("invariant broken: %s + %s != %s", next.Manufactured, next.Balance, next.GroupQty)
	}
}

func TestApplyDeltaSequenceConservesTarget(t *testing.T) {
	state := ledger(100, 0, 100)
	for _, used := range []int64{10, 25, 5, 40, 20} {
		var err error
		state, _, err = applyDelta(state, decimal.NewFromInt(used))
		if err != nil {
			t.Fatalf("applyDelta(%d): %v", used, err)
		}
	}
	if !state.Manufactured.Equal(decimal.NewFromInt(100)) || !state.Balance.IsZero() {
		t.Fatalf("expected 100/0 after full consumption; got %s/%s", state.Manufactured, state.Balance)
	}
}

func TestApplyDeltaExactBalanceCompletes(t *testing.T) {
	next, completed, err := applyDelta(ledger(100, 40, 60), decimal.NewFromInt(60))
	if err != nil {
		t.Fatalf("applyDelta: %v", err)
	}
	if !completed {
		t.Fatalf("consuming the exact balance must complete the group")
	}
	if !next.Balance.IsZero() {
		t.Fatalf("expected balance=0; got %s", next.Balance)
	}
}

func TestApplyDeltaRejectsDriftedState(t *testing.T) {
	// A stored row where manufactured + balance != group_qty must never commit.
	_, _, err := applyDelta(ledger(100, 30, 80), decimal.NewFromInt(10))
	if err == nil {
		t.Fatalf("expected invariant error for drifted ledger state")
	}
}

func TestValidateUsedQty(t *testing.T) {
	for _, qty := range []int64{0, -5} {
		err := validateUsedQty(decimal.NewFromInt(qty))
		var validation *utils.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("qty=%d: expected ValidationError; got %v", qty, err)
		}
		if validation.Msg != "invalid quantity" {
			t.Fatalf("qty=%d: expected message %q; got %q", qty, "invalid quantity", validation.Msg)
		}
	}
	if err := validateUsedQty(decimal.NewFromFloat(0.0001)); err != nil {
		t.Fatalf("smallest positive quantity must be valid; got %v", err)
	}
}

func TestCheckLedgerBoundsMessages(t *testing.T) {
	cases := []struct {
		name    string
		state   ledgerState
		used    int64
		wantMsg string
	}{
		{"exceeds balance", ledger(100, 40, 60), 61, "exceeds balance"},
		// Balance is checked first even when both bounds fail.
		{"balance checked before target", ledger(100, 60, 30), 50, "exceeds balance"},
		// Drifted row where the balance passes but the target would overshoot.
		{"exceeds target", ledger(100, 60, 60), 50, "exceeds target"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := checkLedgerBounds(tc.state, decimal.NewFromInt(tc.used))
			var validation *utils.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected ValidationError; got %v", err)
			}
			if validation.Msg != tc.wantMsg {
				t.Fatalf("expected message %q; got %q", tc.wantMsg, validation.Msg)
			}
		})
	}

	if err := checkLedgerBounds(ledger(100, 40, 60), decimal.NewFromInt(60)); err != nil {
		t.Fatalf("exact balance must pass bounds check; got %v", err)
	}
}
