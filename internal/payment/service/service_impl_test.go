package service_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	activityrepo "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/repository"
	activityservice "github.com/TheProjectSEO/School-Management-Software-sub003/internal/activity/service"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	feerepo "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/repository"
	feeservice "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/service"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/ornumber"
	paymentdomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/domain"
	paymentrepo "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/repository"
	paymentservice "github.com/TheProjectSEO/School-Management-Software-sub003/internal/payment/service"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:payment_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE schools (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			or_prefix TEXT NOT NULL DEFAULT 'OR',
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE or_sequences (
			school_id BIGINT PRIMARY KEY,
			last_number BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE students (
			id BIGINT PRIMARY KEY,
			school_id BIGINT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			payment_status TEXT NOT NULL DEFAULT 'enrolled',
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE student_fee_accounts (
			id BIGINT PRIMARY KEY,
			student_id BIGINT NOT NULL,
			school_id BIGINT NOT NULL,
			school_year TEXT NOT NULL DEFAULT '',
			total_fees BIGINT NOT NULL DEFAULT 0,
			current_balance BIGINT NOT NULL DEFAULT 0,
			total_late_fees BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE payment_schedules (
			id BIGINT PRIMARY KEY,
			student_fee_account_id BIGINT NOT NULL,
			due_date TIMESTAMP,
			amount_due BIGINT NOT NULL,
			amount_paid BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE payments (
			id BIGINT PRIMARY KEY,
			student_fee_account_id BIGINT NOT NULL,
			payment_schedule_id BIGINT,
			amount BIGINT NOT NULL,
			gross_amount BIGINT NOT NULL DEFAULT 0,
			gateway_fee BIGINT NOT NULL DEFAULT 0,
			net_amount BIGINT NOT NULL DEFAULT 0,
			payment_date TIMESTAMP,
			payment_method TEXT NOT NULL,
			reference_number TEXT NOT NULL DEFAULT '',
			or_number TEXT,
			gateway_reference TEXT,
			gateway_transaction_id BIGINT,
			status TEXT NOT NULL,
			check_number TEXT,
			check_bank TEXT,
			check_date TIMESTAMP,
			check_status TEXT,
			depositor_name TEXT,
			proof_url TEXT,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE payment_status_history (
			id BIGINT PRIMARY KEY,
			payment_id BIGINT NOT NULL,
			status TEXT NOT NULL,
			source TEXT NOT NULL,
			recorded_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE fee_account_activity_log (
			id BIGINT PRIMARY KEY,
			student_fee_account_id BIGINT NOT NULL,
			action TEXT NOT NULL,
			description TEXT NOT NULL,
			related_payment_id BIGINT,
			old_value TEXT,
			new_value TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	svc       paymentdomain.Service
	schoolID  snowflake.ID
	studentID snowflake.ID
	accountID snowflake.ID
}

func newFixture(t *testing.T, totalFees int64, accountStatus feedomain.AccountStatus) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(30)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	clk := clock.NewSystemClock()
	log := zap.NewNop()

	policy, err := config.NewFeePolicyHolder(config.Config{
		FeePolicyPath: filepath.Join(t.TempDir(), "missing.yml"),
	})
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}

	activitySvc := activityservice.NewService(activityservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: activityrepo.Provide(),
	})
	reconciler := feeservice.NewService(feeservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk,
		Repo: feerepo.Provide(), ActivityRepo: activityrepo.Provide(),
	})
	allocator := ornumber.New(ornumber.Params{Log: log, Clock: clk})

	svc := paymentservice.NewService(paymentservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Repo:       paymentrepo.Provide(node),
		Accounts:   feerepo.Provide(),
		Reconciler: reconciler,
		Activity:   activitySvc,
		Allocator:  allocator,
		Policy:     policy,
	})

	f := &fixture{
		db:        db,
		node:      node,
		svc:       svc,
		schoolID:  node.Generate(),
		studentID: node.Generate(),
		accountID: node.Generate(),
	}

	if err := db.Exec(
		`INSERT INTO schools (id, name, or_prefix) VALUES (?, ?, ?)`,
		f.schoolID, "Main Campus", "OR",
	).Error; err != nil {
		t.Fatalf("seed school: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO students (id, school_id, first_name, last_name, payment_status) VALUES (?, ?, ?, ?, ?)`,
		f.studentID, f.schoolID, "Maria", "Santos", "enrolled",
	).Error; err != nil {
		t.Fatalf("seed student: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO student_fee_accounts (id, student_id, school_id, school_year, total_fees, current_balance, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.accountID, f.studentID, f.schoolID, "2026-2027", totalFees, totalFees, accountStatus,
	).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}

	return f
}

func (f *fixture) account(t *testing.T) *feedomain.StudentFeeAccount {
	t.Helper()
	var account feedomain.StudentFeeAccount
	if err := f.db.First(&account, "id = ?", f.accountID).Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	return &account
}

func (f *fixture) historySources(t *testing.T, paymentID snowflake.ID) []string {
	t.Helper()
	var sources []string
	if err := f.db.Raw(
		`SELECT source FROM payment_status_history WHERE payment_id = ? ORDER BY recorded_at ASC, id ASC`,
		paymentID,
	).Scan(&sources).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	return sources
}

func cashInput(accountID snowflake.ID, amount int64) paymentdomain.RecordInput {
	return paymentdomain.RecordInput{
		StudentFeeAccountID: accountID,
		Amount:              amount,
		PaymentDate:         time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
		PaymentMethod:       paymentdomain.MethodCash,
	}
}

func checkInput(accountID snowflake.ID, amount int64) paymentdomain.RecordInput {
	input := cashInput(accountID, amount)
	input.PaymentMethod = paymentdomain.MethodCheck
	input.CheckNumber = "1002345"
	input.CheckBank = "BDO"
	return input
}

func TestRecordCashSettlesAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)

	res, err := f.svc.Record(ctx, cashInput(f.accountID, 500000))
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	if res.Payment.Status != paymentdomain.StatusCompleted {
		t.Fatalf("payment status: got %s, want completed", res.Payment.Status)
	}
	if res.Payment.ORNumber == nil || *res.Payment.ORNumber != "OR-000001" {
		t.Fatalf("or number: got %v, want OR-000001", res.Payment.ORNumber)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("warnings: got %v, want none", res.Warnings)
	}

	account := f.account(t)
	if account.Status != feedomain.StatusSettled {
		t.Fatalf("account status: got %s, want settled", account.Status)
	}
	if account.CurrentBalance != 0 {
		t.Fatalf("balance: got %d, want 0", account.CurrentBalance)
	}

	sources := f.historySources(t, res.Payment.ID)
	if len(sources) != 1 || sources[0] != paymentdomain.SourceManualRecording {
		t.Fatalf("history sources: got %v, want [manual_recording]", sources)
	}
}

func TestRecordOverpaymentWarns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)

	res, err := f.svc.Record(ctx, cashInput(f.accountID, 600000))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "PHP 1,000.00") {
		t.Fatalf("warnings: got %v, want credit warning for PHP 1,000.00", res.Warnings)
	}

	account := f.account(t)
	if account.Status != feedomain.StatusSettled {
		t.Fatalf("account status: got %s, want settled", account.Status)
	}
	if account.CurrentBalance != -100000 {
		t.Fatalf("balance: got %d, want -100000 credit", account.CurrentBalance)
	}
}

func TestRecordCheckStaysPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)

	res, err := f.svc.Record(ctx, checkInput(f.accountID, 500000))
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Payment.Status != paymentdomain.StatusPending {
		t.Fatalf("payment status: got %s, want pending", res.Payment.Status)
	}
	if res.Payment.CheckStatus == nil || *res.Payment.CheckStatus != paymentdomain.CheckPending {
		t.Fatalf("check status: got %v, want pending", res.Payment.CheckStatus)
	}

	// pending checks never touch the balance
	account := f.account(t)
	if account.Status != feedomain.StatusActive {
		t.Fatalf("account status: got %s, want active", account.Status)
	}
	if account.CurrentBalance != 500000 {
		t.Fatalf("balance: got %d, want 500000", account.CurrentBalance)
	}
}

func TestRecordValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)

	cases := []struct {
		name  string
		input paymentdomain.RecordInput
		want  error
	}{
		{"zero amount", cashInput(f.accountID, 0), paymentdomain.ErrInvalidAmount},
		{"negative amount", cashInput(f.accountID, -100), paymentdomain.ErrInvalidAmount},
		{"bad method", func() paymentdomain.RecordInput {
			in := cashInput(f.accountID, 1000)
			in.PaymentMethod = "barter"
			return in
		}(), paymentdomain.ErrInvalidMethod},
		{"zero date", func() paymentdomain.RecordInput {
			in := cashInput(f.accountID, 1000)
			in.PaymentDate = time.Time{}
			return in
		}(), paymentdomain.ErrInvalidPaymentDate},
		{"check without bank", func() paymentdomain.RecordInput {
			in := checkInput(f.accountID, 1000)
			in.CheckBank = ""
			return in
		}(), paymentdomain.ErrCheckDetailsRequired},
	}

	for _, tc := range cases {
		if _, err := f.svc.Record(ctx, tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestRecordRejectsSettledAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusSettled)

	if _, err := f.svc.Record(ctx, cashInput(f.accountID, 1000)); !errors.Is(err, feedomain.ErrAccountSettled) {
		t.Fatalf("got %v, want ErrAccountSettled", err)
	}
}

func TestRecordRejectsForeignSchedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)

	otherAccountID := f.node.Generate()
	scheduleID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO payment_schedules (id, student_fee_account_id, due_date, amount_due) VALUES (?, ?, ?, ?)`,
		scheduleID, otherAccountID, time.Now().UTC(), 100000,
	).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	input := cashInput(f.accountID, 100000)
	input.PaymentScheduleID = &scheduleID
	if _, err := f.svc.Record(ctx, input); !errors.Is(err, feedomain.ErrScheduleNotFound) {
		t.Fatalf("got %v, want ErrScheduleNotFound", err)
	}
}

func TestGetUnknownPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 500000, feedomain.StatusActive)

	if _, err := f.svc.Get(ctx, f.node.Generate()); !errors.Is(err, paymentdomain.ErrPaymentNotFound) {
		t.Fatalf("got %v, want ErrPaymentNotFound", err)
	}
}
