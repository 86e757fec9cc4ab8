package config

import (
	"errors"
	"log"
	"strings"

	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// FeePolicy carries the operational knobs for the payment ledger. Amounts
// are pesos in the config file and converted to centavos on load.
type FeePolicy struct {
	// BounceFee is charged to the fee account when a check bounces and no
	// explicit fee is supplied with the resolution.
	BounceFee float64 `mapstructure:"bounceFee"`
	// MinOnlineAmount is the smallest amount the gateway checkout accepts.
	MinOnlineAmount float64 `mapstructure:"minOnlineAmount"`
	// CheckoutMethods lists the gateway source types offered at checkout.
	CheckoutMethods []string `mapstructure:"checkoutMethods"`
	// SourceMethodOverrides remaps gateway source types to ledger payment
	// methods on top of the built-in mapping.
	SourceMethodOverrides map[string]string `mapstructure:"sourceMethodOverrides"`
}

func DefaultFeePolicy() FeePolicy {
	return FeePolicy{
		BounceFee:       500,
		MinOnlineAmount: 20,
		CheckoutMethods: []string{"gcash", "grab_pay", "paymaya", "card"},
	}
}

// BounceFeeCentavos returns the default bounce fee in minor units.
func (p FeePolicy) BounceFeeCentavos() int64 {
	return int64(p.BounceFee * 100)
}

// MinOnlineAmountCentavos returns the checkout floor in minor units.
func (p FeePolicy) MinOnlineAmountCentavos() int64 {
	return int64(p.MinOnlineAmount * 100)
}

// FeePolicyHolder exposes the current policy and hot-reloads it when the
// config file changes on disk.
type FeePolicyHolder struct {
	current atomic.Value // holds FeePolicy
}

func NewFeePolicyHolder(cfg Config) (*FeePolicyHolder, error) {
	v := viper.New()

	v.SetConfigFile(cfg.FeePolicyPath)
	v.SetConfigType("yml")

	v.SetEnvPrefix("FEELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFeePolicy()
	v.SetDefault("fees.bounceFee", defaults.BounceFee)
	v.SetDefault("fees.minOnlineAmount", defaults.MinOnlineAmount)
	v.SetDefault("fees.checkoutMethods", defaults.CheckoutMethods)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, err
		}
		// missing file is fine, run on defaults
		watch = false
	}

	var policy FeePolicy
	if err := v.UnmarshalKey("fees", &policy); err != nil {
		return nil, err
	}
	if err := validateFeePolicy(policy); err != nil {
		return nil, err
	}

	holder := &FeePolicyHolder{}
	holder.current.Store(policy)

	if watch {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			var updated FeePolicy
			if err := v.UnmarshalKey("fees", &updated); err != nil {
				log.Printf("[fee-policy] reload failed: %v", err)
				return
			}
			if err := validateFeePolicy(updated); err != nil {
				log.Printf("[fee-policy] invalid config ignored: %v", err)
				return
			}
			holder.current.Store(updated)
			log.Printf("[fee-policy] reloaded from %s", e.Name)
		})
	}

	return holder, nil
}

func (h *FeePolicyHolder) Get() FeePolicy {
	return h.current.Load().(FeePolicy)
}

func validateFeePolicy(policy FeePolicy) error {
	if policy.BounceFee < 0 {
		return errors.New("fees.bounceFee cannot be negative")
	}
	if policy.MinOnlineAmount <= 0 {
		return errors.New("fees.minOnlineAmount must be positive")
	}
	if len(policy.CheckoutMethods) == 0 {
		return errors.New("fees.checkoutMethods cannot be empty")
	}
	return nil
}

func isNotExist(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file")
}
