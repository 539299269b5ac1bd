package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PlanFree    = "free"
	PlanBasic   = "basic"
	PlanPremium = "premium"

	// UnlimitedFunctions disables the function quota for a plan.
	UnlimitedFunctions = -1
)

// Plan describes the subscription limits of a plan.
type Plan struct {
	Name         string `mapstructure:"name"`
	MaxFunctions int    `mapstructure:"maxFunctions"`
}

func DefaultPlans() []Plan {
	return []Plan{
		{Name: PlanFree, MaxFunctions: 5},
		{Name: PlanBasic, MaxFunctions: 50},
		{Name: PlanPremium, MaxFunctions: UnlimitedFunctions},
	}
}

// PlanCatalog holds the current plan table and reloads it when plans.yml changes.
type PlanCatalog struct {
	current atomic.Value // holds []Plan
	def     string
}

func NewPlanCatalog(cfg Config) (*PlanCatalog, error) {
	v := viper.New()

	if cfg.Tenant.PlansPath != "" {
		v.SetConfigFile(cfg.Tenant.PlansPath)
	} else {
		v.SetConfigName("plans")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/moiledger")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("MOILEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	catalog := &PlanCatalog{def: cfg.Tenant.DefaultPlan}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read plans config: %w", err)
		}
		catalog.current.Store(DefaultPlans())
		return catalog, catalog.validateDefault()
	}

	plans, err := decodePlans(v)
	if err != nil {
		return nil, err
	}
	catalog.current.Store(plans)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodePlans(v)
		if err != nil {
			zap.L().Warn("plans config reload failed", zap.String("file", e.Name), zap.Error(err))
			return
		}
		catalog.current.Store(updated)
		zap.L().Info("plans config reloaded", zap.String("file", e.Name), zap.Int("plans", len(updated)))
	})

	return catalog, catalog.validateDefault()
}

// NewStaticPlanCatalog builds a catalog that never reloads.
func NewStaticPlanCatalog(defaultPlan string, plans ...Plan) *PlanCatalog {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}
	catalog := &PlanCatalog{def: defaultPlan}
	catalog.current.Store(plans)
	return catalog
}

func (c *PlanCatalog) Plans() []Plan {
	plans := c.current.Load().([]Plan)
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// Default returns the plan assigned to new organizations.
func (c *PlanCatalog) Default() string {
	if strings.TrimSpace(c.def) == "" {
		return PlanFree
	}
	return c.def
}

// Lookup returns the plan by case-insensitive name.
func (c *PlanCatalog) Lookup(name string) (Plan, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, plan := range c.current.Load().([]Plan) {
		if plan.Name == name {
			return plan, true
		}
	}
	return Plan{}, false
}

func (c *PlanCatalog) validateDefault() error {
	if _, ok := c.Lookup(c.Default()); !ok {
		return fmt.Errorf("default plan %q is not defined", c.Default())
	}
	return nil
}

func decodePlans(v *viper.Viper) ([]Plan, error) {
	var plans []Plan
	if err := v.UnmarshalKey("plans", &plans); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, errors.New("plans cannot be empty")
	}
	seen := make(map[string]struct{}, len(plans))
	for i := range plans {
		plans[i].Name = strings.ToLower(strings.TrimSpace(plans[i].Name))
		if plans[i].Name == "" {
			return nil, errors.New("plan name cannot be empty")
		}
		if plans[i].MaxFunctions < UnlimitedFunctions {
			return nil, fmt.Errorf("plan %q has invalid maxFunctions %d", plans[i].Name, plans[i].MaxFunctions)
		}
		if _, dup := seen[plans[i].Name]; dup {
			return nil, fmt.Errorf("plan %q defined twice", plans[i].Name)
		}
		seen[plans[i].Name] = struct{}{}
	}
	return plans, nil
}
