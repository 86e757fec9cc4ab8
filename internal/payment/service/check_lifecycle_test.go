package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"

	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	paymentdomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
)

func recordCheck(t *testing.T, f *fixture, amount int64) snowflake.ID {
	t.Helper()
	res, err := f.svc.Record(context.Background(), checkInput(f.accountID, amount))
	if err != nil {
		t.Fatalf("record check: %v", err)
	}
	return res.Payment.ID
}

func TestClearCheckCompletesAndReconciles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)
	paymentID := recordCheck(t, f, 500000)

	if err := f.svc.ResolveCheck(ctx, paymentID, paymentdomain.CheckCleared, 0); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	payment, err := f.svc.Get(ctx, paymentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payment.Status != paymentdomain.StatusCompleted {
		t.Fatalf("status: got %s, want completed", payment.Status)
	}
	if payment.CheckStatus == nil || *payment.CheckStatus != paymentdomain.CheckCleared {
		t.Fatalf("check status: got %v, want cleared", payment.CheckStatus)
	}

	account := f.account(t)
	if account.Status != feedomain.StatusSettled {
		t.Fatalf("account status: got %s, want settled", account.Status)
	}
	if account.CurrentBalance != 0 {
		t.Fatalf("balance: got %d, want 0", account.CurrentBalance)
	}

	sources := f.historySources(t, paymentID)
	want := []string{paymentdomain.SourceManualRecording, paymentdomain.SourceCheckCleared}
	if len(sources) != 2 || sources[0] != want[0] || sources[1] != want[1] {
		t.Fatalf("history sources: got %v, want %v", sources, want)
	}
}

func TestBounceCheckChargesDefaultFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)
	paymentID := recordCheck(t, f, 500000)

	// Fee of zero falls back to the policy default of PHP 500.
	if err := f.svc.ResolveCheck(ctx, paymentID, paymentdomain.CheckBounced, 0); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	payment, err := f.svc.Get(ctx, paymentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payment.Status != paymentdomain.StatusFailed {
		t.Fatalf("status: got %s, want failed", payment.Status)
	}

	account := f.account(t)
	if account.TotalLateFees != 50000 {
		t.Fatalf("late fees: got %d, want 50000", account.TotalLateFees)
	}
	// The pending check never counted, so the balance is untouched.
	if account.CurrentBalance != 500000 {
		t.Fatalf("balance: got %d, want 500000", account.CurrentBalance)
	}
	if !strings.Contains(account.Notes, "Check #1002345 bounced") {
		t.Fatalf("notes missing bounce record: %q", account.Notes)
	}
}

func TestBounceCheckCustomFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)
	paymentID := recordCheck(t, f, 200000)

	if err := f.svc.ResolveCheck(ctx, paymentID, paymentdomain.CheckBounced, 25000); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	account := f.account(t)
	if account.TotalLateFees != 25000 {
		t.Fatalf("late fees: got %d, want 25000", account.TotalLateFees)
	}
}

func TestResolveCheckIsTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)
	paymentID := recordCheck(t, f, 200000)

	if err := f.svc.ResolveCheck(ctx, paymentID, paymentdomain.CheckCleared, 0); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	err := f.svc.ResolveCheck(ctx, paymentID, paymentdomain.CheckBounced, 0)
	if !errors.Is(err, paymentdomain.ErrCheckAlreadyResolved) {
		t.Fatalf("got %v, want ErrCheckAlreadyResolved", err)
	}
}

func TestResolveCheckRejectsNonChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)

	res, err := f.svc.Record(ctx, cashInput(f.accountID, 100000))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := f.svc.ResolveCheck(ctx, res.Payment.ID, paymentdomain.CheckCleared, 0); !errors.Is(err, paymentdomain.ErrNotACheck) {
		t.Fatalf("got %v, want ErrNotACheck", err)
	}
}

func TestResolveCheckRejectsPendingTarget(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)
	paymentID := recordCheck(t, f, 200000)

	err := f.svc.ResolveCheck(ctx, paymentID, paymentdomain.CheckPending, 0)
	if !errors.Is(err, paymentdomain.ErrInvalidCheckStatus) {
		t.Fatalf("got %v, want ErrInvalidCheckStatus", err)
	}
}
