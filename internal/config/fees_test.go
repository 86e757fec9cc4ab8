package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/TheProjectSEO/School-Management-Software-sub003/internal/config"
)

func TestFeePolicyDefaultsWhenFileMissing(t *testing.T) {
	holder, err := config.NewFeePolicyHolder(config.Config{
		FeePolicyPath: filepath.Join(t.TempDir(), "missing.yml"),
	})
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}

	policy := holder.Get()
	if policy.BounceFeeCentavos() != 50000 {
		t.Fatalf("bounce fee: got %d, want 50000", policy.BounceFeeCentavos())
	}
	if policy.MinOnlineAmountCentavos() != 2000 {
		t.Fatalf("min online amount: got %d, want 2000", policy.MinOnlineAmountCentavos())
	}
	if len(policy.CheckoutMethods) != 4 {
		t.Fatalf("checkout methods: got %v, want 4 defaults", policy.CheckoutMethods)
	}
}

func TestFeePolicyLoadsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fees.yml")
	content := `fees:
  bounceFee: 250
  minOnlineAmount: 100
  checkoutMethods:
    - gcash
  sourceMethodOverrides:
    dob: bank_deposit
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	holder, err := config.NewFeePolicyHolder(config.Config{FeePolicyPath: path})
	if err != nil {
		t.Fatalf("new holder: %v", err)
	}

	policy := holder.Get()
	if policy.BounceFeeCentavos() != 25000 {
		t.Fatalf("bounce fee: got %d, want 25000", policy.BounceFeeCentavos())
	}
	if policy.MinOnlineAmountCentavos() != 10000 {
		t.Fatalf("min online amount: got %d, want 10000", policy.MinOnlineAmountCentavos())
	}
	if len(policy.CheckoutMethods) != 1 || policy.CheckoutMethods[0] != "gcash" {
		t.Fatalf("checkout methods: got %v, want [gcash]", policy.CheckoutMethods)
	}
	if policy.SourceMethodOverrides["dob"] != "bank_deposit" {
		t.Fatalf("overrides: got %v", policy.SourceMethodOverrides)
	}
}

func TestFeePolicyRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fees.yml")
	content := `fees:
  minOnlineAmount: -5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := config.NewFeePolicyHolder(config.Config{FeePolicyPath: path}); err == nil {
		t.Fatal("expected error for negative minimum")
	}
}
