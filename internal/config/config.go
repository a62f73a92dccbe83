package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/rest"

	"perpvenue/internal/copytrading"
	"perpvenue/internal/countertrade"
	"perpvenue/internal/liquifund"
	"perpvenue/internal/numeric"
	"perpvenue/pkg/confkit"
)

// CacheTTL buckets the go-zero redis cache by how volatile the cached
// value is: a spot price moves every crank, a closed-position page never
// changes once written.
type CacheTTL struct {
	Short  int `json:",default=10"` // seconds; spot price, pending queue heads
	Medium int `json:",default=60"`
	Long   int `json:",default=300"` // closed-position history, market metadata
}

// PostgresConf mirrors goctl style database settings while allowing pool tuning.
type PostgresConf struct {
	DataSource  string        `json:",optional"`
	MaxOpen     int           `json:",default=10"`
	MaxIdle     int           `json:",default=5"`
	MaxLifetime time.Duration `json:",default=5m"`
}

// MarketParams is the on-disk (YAML) shape of a single market's tunable
// parameters. Decimal fields are plain strings in config because go-zero's
// conf loader decodes into primitive kinds; Build parses them once at
// startup into the numeric.Dec-typed values the engine packages use.
type MarketParams struct {
	Token string `json:",optional"`

	Sensitivity    string `json:",default=1.0"`
	RfCap          string `json:",default=0.02"`
	DnfSensitivity string `json:",default=1.0"`
	DnfCap         string `json:",default=0.01"`

	MinFunding        string `json:",default=-1.0"`
	MaxFunding        string `json:",default=1.0"`
	TargetFunding     string `json:",default=0"`
	AllowedIterations int    `json:",default=20"`

	MaxLeverage       string `json:",default=30"`
	TakeProfitFactor  string `json:",default=10"`
	StopLossFactor    string `json:",default=0.9"`
	MinimumDepositUsd string `json:",default=10"`
	CrankFee          string `json:",default=0.01"`

	LiquifundingDelay time.Duration `json:",default=1h"`
	PerUnitCrankReward string       `json:",default=0.0001"`
}

// Build parses a MarketParams's string fields into the numeric.Dec-typed
// values internal/countertrade and internal/liquifund expect, failing fast
// on a malformed config value rather than panicking deep inside a crank.
func (p MarketParams) Build() (countertrade.Config, liquifund.Config, numeric.Collateral, error) {
	dec := func(s string, field string, errOut *error) numeric.Dec {
		v, err := numeric.ParseDec(s)
		if err != nil && *errOut == nil {
			*errOut = fmt.Errorf("market %s: parse %s=%q: %w", p.Token, field, s, err)
		}
		return v
	}

	var err error
	cfg := countertrade.Config{
		Sensitivity:       dec(p.Sensitivity, "sensitivity", &err),
		RfCap:             dec(p.RfCap, "rf_cap", &err),
		DnfSensitivity:    dec(p.DnfSensitivity, "dnf_sensitivity", &err),
		DnfCap:            dec(p.DnfCap, "dnf_cap", &err),
		MinFunding:        dec(p.MinFunding, "min_funding", &err),
		MaxFunding:        dec(p.MaxFunding, "max_funding", &err),
		TargetFunding:     dec(p.TargetFunding, "target_funding", &err),
		AllowedIterations: p.AllowedIterations,
		MaxLeverage:       dec(p.MaxLeverage, "max_leverage", &err),
		TakeProfitFactor:  dec(p.TakeProfitFactor, "take_profit_factor", &err),
		StopLossFactor:    dec(p.StopLossFactor, "stop_loss_factor", &err),
		MinimumDepositUsd: numeric.NewUsd(dec(p.MinimumDepositUsd, "minimum_deposit_usd", &err)),
		CrankFee:          numeric.NewCollateral(dec(p.CrankFee, "crank_fee", &err)),
	}
	lf := liquifund.Config{LiquifundingDelay: p.LiquifundingDelay}
	reward := numeric.NewCollateral(dec(p.PerUnitCrankReward, "per_unit_crank_reward", &err))
	if err != nil {
		return countertrade.Config{}, liquifund.Config{}, numeric.Collateral{}, err
	}
	return cfg, lf, reward, nil
}

// MarketdConfig is marketd's top-level configuration: the HTTP transport
// surface (§6's ExecuteMsg/QueryMsg dispatch) plus one MarketParams per
// token it serves.
type MarketdConfig struct {
	rest.RestConf
	Postgres PostgresConf    `json:",optional"`
	Cache    cache.CacheConf `json:",optional"`
	TTL      CacheTTL        `json:",optional"`

	Markets        []MarketParams `json:",optional"`
	CrankRewardAddr string        `json:",optional"`

	mainPath string
	baseDir  string
}

// CountertradedConfig is the countertrade keeper daemon's configuration: it
// runs headless (no HTTP surface of its own, it calls back into marketd's
// transport per market), so it embeds go-zero's bare ServiceConf rather
// than RestConf.
type CountertradedConfig struct {
	service.ServiceConf
	Postgres     PostgresConf    `json:",optional"`
	Cache        cache.CacheConf `json:",optional"`
	TTL          CacheTTL        `json:",optional"`
	VaultOwner   string          `json:",optional"`
	Markets      []MarketParams  `json:",optional"`
	PollInterval time.Duration   `json:",default=5s"`

	mainPath string
	baseDir  string
}

// CopytradingdConfig is the copy-trading vault processor's configuration.
type CopytradingdConfig struct {
	service.ServiceConf
	Postgres   PostgresConf    `json:",optional"`
	Cache      cache.CacheConf `json:",optional"`
	TTL        CacheTTL        `json:",optional"`
	VaultOwner string          `json:",optional"`
	Markets    []MarketParams  `json:",optional"`

	AllowedRebalanceQueries int           `json:",default=20"`
	AllowedLpTokenQueries   int           `json:",default=20"`
	ValueStaleAfter         time.Duration `json:",default=1m"`
	PollInterval            time.Duration `json:",default=5s"`

	mainPath string
	baseDir  string
}

// Build converts the wire config into the processor's runtime Config.
func (c CopytradingdConfig) Build() copytrading.Config {
	return copytrading.Config{
		AllowedRebalanceQueries: c.AllowedRebalanceQueries,
		AllowedLpTokenQueries:   c.AllowedLpTokenQueries,
		ValueStaleAfter:         c.ValueStaleAfter,
	}
}

func init() {
	confkit.LoadDotenvOnce()
}

// LoadMarketd loads and validates marketd's configuration from path,
// defaulting to etc/marketd.yaml resolved against the project root when
// path is empty.
func LoadMarketd(path string) (*MarketdConfig, error) {
	confkit.LoadDotenvOnce()
	absPath, err := resolvePath(path, "etc/marketd.yaml")
	if err != nil {
		return nil, err
	}
	var cfg MarketdConfig
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}
	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)
	if err := validateTTL(cfg.TTL); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoadMarketd is LoadMarketd's panic-on-error twin, used from main().
func MustLoadMarketd(path string) *MarketdConfig {
	cfg, err := LoadMarketd(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadCountertraded loads the countertrade keeper's configuration.
func LoadCountertraded(path string) (*CountertradedConfig, error) {
	confkit.LoadDotenvOnce()
	absPath, err := resolvePath(path, "etc/countertraded.yaml")
	if err != nil {
		return nil, err
	}
	var cfg CountertradedConfig
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}
	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)
	if err := validateTTL(cfg.TTL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.VaultOwner) == "" {
		return nil, errors.New("config: vaultOwner is required")
	}
	return &cfg, nil
}

// MustLoadCountertraded is LoadCountertraded's panic-on-error twin.
func MustLoadCountertraded(path string) *CountertradedConfig {
	cfg, err := LoadCountertraded(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadCopytradingd loads the copy-trading vault processor's configuration.
func LoadCopytradingd(path string) (*CopytradingdConfig, error) {
	confkit.LoadDotenvOnce()
	absPath, err := resolvePath(path, "etc/copytradingd.yaml")
	if err != nil {
		return nil, err
	}
	var cfg CopytradingdConfig
	if err := conf.Load(absPath, &cfg, conf.UseEnv()); err != nil {
		return nil, fmt.Errorf("load config %s: %w", absPath, err)
	}
	cfg.mainPath = absPath
	cfg.baseDir = filepath.Dir(absPath)
	if err := validateTTL(cfg.TTL); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.VaultOwner) == "" {
		return nil, errors.New("config: vaultOwner is required")
	}
	return &cfg, nil
}

// MustLoadCopytradingd is LoadCopytradingd's panic-on-error twin.
func MustLoadCopytradingd(path string) *CopytradingdConfig {
	cfg, err := LoadCopytradingd(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func resolvePath(path, fallback string) (string, error) {
	if strings.TrimSpace(path) == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	if root, err := confkit.ProjectRoot(); err == nil {
		candidate := confkit.ResolvePath(root, path)
		if _, statErr := os.Stat(candidate); statErr == nil {
			return candidate, nil
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve config path %s: %w", path, err)
	}
	return abs, nil
}

func (c *MarketdConfig) MainPath() string { return c.mainPath }
func (c *MarketdConfig) BaseDir() string  { return c.baseDir }

func (c *CountertradedConfig) MainPath() string { return c.mainPath }
func (c *CountertradedConfig) BaseDir() string  { return c.baseDir }

func (c *CopytradingdConfig) MainPath() string { return c.mainPath }
func (c *CopytradingdConfig) BaseDir() string  { return c.baseDir }

func validateTTL(ttl CacheTTL) error {
	if ttl.Short <= 0 || ttl.Medium <= 0 || ttl.Long <= 0 {
		return errors.New("config: ttl.short/medium/long must all be positive")
	}
	return nil
}
