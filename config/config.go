package config

import (
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/domino14/bracketsim/outcomes"
)

const (
	ConfigDebug             = "debug"
	ConfigCPUProfile        = "cpu-profile"
	ConfigMemProfile        = "mem-profile"
	ConfigConfigFile        = "config"
	ConfigPoolPath          = "pool-path"
	ConfigCheckpointPath    = "checkpoint-path"
	ConfigOptimizeLog       = "optimize-log"
	ConfigCrossProductLimit = "cross-product-limit"
	ConfigSampleBudget      = "sample-budget"
	ConfigSeed              = "seed"
	ConfigParallelDepth     = "parallel-depth"
	ConfigMergeOthers       = "merge-others"
	ConfigThreads           = "threads"
	ConfigReplicates        = "replicates"
	ConfigConfidence        = "confidence"
)

const envPrefix = "BRACKETSIM"

// Config is a viper instance with the program's keys. Precedence is flags,
// then BRACKETSIM_* environment variables (a .env file counts), then the
// config file, then defaults.
type Config struct {
	*viper.Viper
	args []string
}

func DefaultConfig() *Config {
	c := &Config{Viper: viper.New()}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	c.SetDefault(ConfigDebug, false)
	c.SetDefault(ConfigPoolPath, "")
	c.SetDefault(ConfigCheckpointPath, "./data/checkpoint.db")
	c.SetDefault(ConfigOptimizeLog, "")
	// 0 means size from available memory.
	c.SetDefault(ConfigCrossProductLimit, 0)
	c.SetDefault(ConfigSampleBudget, outcomes.DefaultSampleBudget)
	// 0 means a fresh random seed for every engine.
	c.SetDefault(ConfigSeed, 0)
	c.SetDefault(ConfigParallelDepth, 3)
	c.SetDefault(ConfigMergeOthers, false)
	c.SetDefault(ConfigThreads, 4)
	c.SetDefault(ConfigReplicates, 1)
	c.SetDefault(ConfigConfidence, 95.0)
}

func (c *Config) Load(args []string) error {
	// A missing .env is fine.
	_ = godotenv.Load()

	c.Viper = viper.New()
	c.setDefaults()
	c.SetEnvPrefix(envPrefix)
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()

	fs := pflag.NewFlagSet("bracketsim", pflag.ContinueOnError)
	fs.Bool(ConfigDebug, false, "debug logging on")
	fs.String(ConfigCPUProfile, "", "file to write a CPU profile to")
	fs.String(ConfigMemProfile, "", "file to write a memory profile to")
	fs.String(ConfigConfigFile, "", "optional config file (yaml, toml, json)")
	fs.String(ConfigPoolPath, "", "pool file to load on startup")
	fs.String(ConfigCheckpointPath, "./data/checkpoint.db", "sqlite file for optimizer progress")
	fs.String(ConfigOptimizeLog, "", "file to stream new optimizer bests to, as YAML")
	fs.Int(ConfigCrossProductLimit, 0, "tuple pairs above which the engine samples; 0 sizes from memory")
	fs.Int(ConfigSampleBudget, outcomes.DefaultSampleBudget, "Monte Carlo draws per unit of probability mass")
	fs.Uint64(ConfigSeed, 0, "random seed; 0 picks one")
	fs.Int(ConfigParallelDepth, 3, "rounds from the top whose feeder games are computed in parallel")
	fs.Bool(ConfigMergeOthers, false, "merge unpicked teams into one branch (approximate)")
	fs.Int(ConfigThreads, 4, "optimizer threads")
	fs.Int(ConfigReplicates, 1, "engine runs with different seeds when sampling")
	fs.Float64(ConfigConfidence, 95.0, "confidence interval for replicated estimates, in percent")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := c.BindPFlags(fs); err != nil {
		return err
	}
	c.args = fs.Args()

	if f := c.GetString(ConfigConfigFile); f != "" {
		c.SetConfigFile(f)
		if err := c.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}

// Args are the positional arguments left over after flags.
func (c *Config) Args() []string {
	return c.args
}

// SanitizedSettings is the settings map minus anything secret-looking, for
// logging.
func (c *Config) SanitizedSettings() map[string]any {
	out := map[string]any{}
	for k, v := range c.AllSettings() {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "token") || strings.Contains(lk, "secret") || strings.Contains(lk, "password") {
			continue
		}
		out[k] = v
	}
	return out
}

// AdjustRelativePaths makes relative file paths relative to basePath, the
// executable's directory.
func (c *Config) AdjustRelativePaths(basePath string) {
	for _, key := range []string{ConfigCheckpointPath} {
		p := c.GetString(key)
		if p != "" && !filepath.IsAbs(p) {
			c.Set(key, filepath.Join(basePath, p))
		}
	}
}

// EngineOptions turns the engine settings into options for
// outcomes.NewEngine.
func (c *Config) EngineOptions() []outcomes.Option {
	opts := []outcomes.Option{
		outcomes.WithSampleBudget(c.GetInt(ConfigSampleBudget)),
		outcomes.WithParallelism(c.GetInt(ConfigParallelDepth)),
		outcomes.WithOtherMerging(c.GetBool(ConfigMergeOthers)),
	}
	if limit := c.GetInt(ConfigCrossProductLimit); limit > 0 {
		opts = append(opts, outcomes.WithCrossProductLimit(limit))
	}
	if seed := c.GetUint64(ConfigSeed); seed != 0 {
		opts = append(opts, outcomes.WithSeed(seed))
	}
	return opts
}
