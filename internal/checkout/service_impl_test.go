package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
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
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/checkout"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/clock"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
	feedomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/domain"
	feerepo "github.com/TheProjectSEO/School-Management-Software-sub003/internal/feeaccount/repository"
	gatewaydomain "github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/domain"
	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/gateway/adapters/paymongo"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:checkout_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
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

// gatewayStub fakes the checkout session endpoint and records the last
// request body.
func gatewayStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout_sessions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"data": {
				"id": "cs_stub_1",
				"attributes": {
					"checkout_url": "https://checkout.example/cs_stub_1",
					"reference_number": "PAY-REF"
				}
			}
		}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

type fixture struct {
	db        *gorm.DB
	node      *snowflake.Node
	svc       checkout.Service
	accountID snowflake.ID
}

func newFixture(t *testing.T, balance int64, status feedomain.AccountStatus, baseURL string) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(50)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	clk := clock.NewSystemClock()
	log := zap.NewNop()

	cfg := config.Config{
		PayMongo: config.PayMongoConfig{
			BaseURL:       baseURL,
			SecretKey:     "sk_test_key",
			WebhookSecret: "whsec_test",
			SuccessURL:    "https://school.example/payments/success",
			CancelURL:     "https://school.example/payments/cancel",
		},
	}
	policy, err := config.NewFeePolicyHolder(config.Config{
		FeePolicyPath: filepath.Join(t.TempDir(), "missing.yml"),
	})
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}

	activitySvc := activityservice.NewService(activityservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: activityrepo.Provide(),
	})

	svc := checkout.NewService(checkout.Params{
		DB:       db,
		Log:      log,
		Clock:    clk,
		Accounts: feerepo.Provide(),
		Client:   paymongo.NewClient(cfg),
		Activity: activitySvc,
		Policy:   policy,
	})

	f := &fixture{db: db, node: node, svc: svc, accountID: node.Generate()}
	if err := db.Exec(
		`INSERT INTO student_fee_accounts (id, student_id, school_id, school_year, total_fees, current_balance, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.accountID, node.Generate(), node.Generate(), "2026-2027", balance, balance, status,
	).Error; err != nil {
		t.Fatalf("seed account: %v", err)
	}
	return f
}

func TestCreateFullPayment(t *testing.T) {
	ctx := context.Background()
	srv := gatewayStub(t)
	f := newFixture(t, 500000, feedomain.StatusActive, srv.URL)

	sess, err := f.svc.Create(ctx, checkout.Input{
		FeeAccountID: f.accountID,
		Type:         checkout.PaymentTypeFull,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.SessionID != "cs_stub_1" {
		t.Fatalf("session id: got %q", sess.SessionID)
	}
	if sess.Amount != 500000 {
		t.Fatalf("amount: got %d, want 500000", sess.Amount)
	}
	if !strings.HasPrefix(sess.ReferenceNumber, "PAY-") {
		t.Fatalf("reference: got %q, want PAY- prefix", sess.ReferenceNumber)
	}

	var count int64
	err = f.db.Raw(
		`SELECT COUNT(1) FROM fee_account_activity_log WHERE student_fee_account_id = ? AND action = ?`,
		f.accountID, "checkout_initiated",
	).Scan(&count).Error
	if err != nil {
		t.Fatalf("count activity: %v", err)
	}
	if count != 1 {
		t.Fatalf("checkout activity rows: got %d, want 1", count)
	}
}

func TestCreateSchedulePayment(t *testing.T) {
	ctx := context.Background()
	srv := gatewayStub(t)
	f := newFixture(t, 500000, feedomain.StatusActive, srv.URL)

	scheduleID := f.node.Generate()
	if err := f.db.Exec(
		`INSERT INTO payment_schedules (id, student_fee_account_id, due_date, amount_due, amount_paid) VALUES (?, ?, ?, ?, ?)`,
		scheduleID, f.accountID, time.Now().UTC(), 100000, 40000,
	).Error; err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	sess, err := f.svc.Create(ctx, checkout.Input{
		FeeAccountID: f.accountID,
		ScheduleID:   &scheduleID,
		Type:         checkout.PaymentTypeSchedule,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Amount != 60000 {
		t.Fatalf("amount: got %d, want outstanding 60000", sess.Amount)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	srv := gatewayStub(t)

	t.Run("below minimum", func(t *testing.T) {
		f := newFixture(t, 500000, feedomain.StatusActive, srv.URL)
		_, err := f.svc.Create(ctx, checkout.Input{
			FeeAccountID: f.accountID,
			Type:         checkout.PaymentTypeCustom,
			CustomAmount: 1500,
		})
		if !errors.Is(err, checkout.ErrAmountBelowMinimum) {
			t.Fatalf("got %v, want ErrAmountBelowMinimum", err)
		}
	})

	t.Run("unknown method", func(t *testing.T) {
		f := newFixture(t, 500000, feedomain.StatusActive, srv.URL)
		_, err := f.svc.Create(ctx, checkout.Input{
			FeeAccountID: f.accountID,
			Type:         checkout.PaymentTypeFull,
			Methods:      []string{"bitcoin"},
		})
		if !errors.Is(err, checkout.ErrInvalidMethod) {
			t.Fatalf("got %v, want ErrInvalidMethod", err)
		}
	})

	t.Run("settled account", func(t *testing.T) {
		f := newFixture(t, 0, feedomain.StatusSettled, srv.URL)
		_, err := f.svc.Create(ctx, checkout.Input{
			FeeAccountID: f.accountID,
			Type:         checkout.PaymentTypeFull,
		})
		if !errors.Is(err, feedomain.ErrAccountSettled) {
			t.Fatalf("got %v, want ErrAccountSettled", err)
		}
	})

	t.Run("account on hold", func(t *testing.T) {
		f := newFixture(t, 500000, feedomain.StatusOnHold, srv.URL)
		_, err := f.svc.Create(ctx, checkout.Input{
			FeeAccountID: f.accountID,
			Type:         checkout.PaymentTypeFull,
		})
		if !errors.Is(err, feedomain.ErrAccountOnHold) {
			t.Fatalf("got %v, want ErrAccountOnHold", err)
		}
	})

	t.Run("unknown schedule", func(t *testing.T) {
		f := newFixture(t, 500000, feedomain.StatusActive, srv.URL)
		scheduleID := f.node.Generate()
		_, err := f.svc.Create(ctx, checkout.Input{
			FeeAccountID: f.accountID,
			ScheduleID:   &scheduleID,
			Type:         checkout.PaymentTypeSchedule,
		})
		if !errors.Is(err, feedomain.ErrScheduleNotFound) {
			t.Fatalf("got %v, want ErrScheduleNotFound", err)
		}
	})

	t.Run("bad payment type", func(t *testing.T) {
		f := newFixture(t, 500000, feedomain.StatusActive, srv.URL)
		_, err := f.svc.Create(ctx, checkout.Input{
			FeeAccountID: f.accountID,
			Type:         checkout.PaymentType("installment"),
		})
		if !errors.Is(err, checkout.ErrInvalidPaymentType) {
			t.Fatalf("got %v, want ErrInvalidPaymentType", err)
		}
	})
}

func TestCreateUnconfiguredGateway(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	node, _ := snowflake.NewNode(51)

	policy, err := config.NewFeePolicyHolder(config.Config{
		FeePolicyPath: filepath.Join(t.TempDir(), "missing.yml"),
	})
	if err != nil {
		t.Fatalf("fee policy: %v", err)
	}

	svc := checkout.NewService(checkout.Params{
		DB:       db,
		Log:      zap.NewNop(),
		Clock:    clock.NewSystemClock(),
		Accounts: feerepo.Provide(),
		Client:   paymongo.NewClient(config.Config{}),
		Activity: activityservice.NewService(activityservice.Params{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: clock.NewSystemClock(), Repo: activityrepo.Provide(),
		}),
		Policy: policy,
	})

	_, err = svc.Create(ctx, checkout.Input{FeeAccountID: node.Generate(), Type: checkout.PaymentTypeFull})
	if !errors.Is(err, gatewaydomain.ErrGatewayNotConfigured) {
		t.Fatalf("got %v, want ErrGatewayNotConfigured", err)
	}
}
