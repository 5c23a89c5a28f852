package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/cleanloom/internal/detect"
	"github.com/KaramelBytes/cleanloom/internal/ingest"
	"github.com/KaramelBytes/cleanloom/internal/isoforest"
	"github.com/KaramelBytes/cleanloom/internal/pipeline"
)

const dirName = ".cleanloom"

// Global configuration structure.
type Global struct {
	// Outlier forest
	ForestTrees      int   `mapstructure:"forest_trees" yaml:"forest_trees"`
	ForestSampleSize int   `mapstructure:"forest_sample_size" yaml:"forest_sample_size"`
	ForestSeed       int64 `mapstructure:"forest_seed" yaml:"forest_seed"`

	KNNNeighbors      int      `mapstructure:"knn_neighbors" yaml:"knn_neighbors"`
	MaxOutlierRounds  int      `mapstructure:"max_outlier_rounds" yaml:"max_outlier_rounds"`
	DatetimeRatio     float64  `mapstructure:"datetime_ratio" yaml:"datetime_ratio"`
	IdentifierColumns []string `mapstructure:"identifier_columns" yaml:"identifier_columns"`

	PresetsDir string `mapstructure:"presets_dir" yaml:"presets_dir"`
	ExportDir  string `mapstructure:"export_dir" yaml:"export_dir"`
	ServerAddr string `mapstructure:"server_addr" yaml:"server_addr"`
	LogLevel   string `mapstructure:"log_level" yaml:"log_level"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"forest_trees", "forest_sample_size", "forest_seed",
	"knn_neighbors", "max_outlier_rounds", "datetime_ratio", "identifier_columns",
	"presets_dir", "export_dir", "server_addr", "log_level",
}

func defaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName, "config.yaml"), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.cleanloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		p, err := defaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from .env, environment, file and defaults.
// Precedence: env > config file (cfgFile or ~/.cleanloom/config.yaml) > defaults.
func Load(cfgFile string) (*Global, error) {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CLEANLOOM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	forest := isoforest.DefaultOptions()
	v.SetDefault("forest_trees", forest.Trees)
	v.SetDefault("forest_sample_size", forest.SampleSize)
	v.SetDefault("forest_seed", forest.Seed)
	v.SetDefault("knn_neighbors", detect.DefaultNeighbors)
	v.SetDefault("max_outlier_rounds", pipeline.DefaultMaxOutlierRounds)
	v.SetDefault("datetime_ratio", ingest.DefaultOptions().DatetimeRatio)
	v.SetDefault("identifier_columns", detect.DefaultIdentifiers)
	v.SetDefault("presets_dir", "data")
	v.SetDefault("export_dir", ".")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("log_level", "warn")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		path, err := defaultPath()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Set assigns one key from its string form, as used by `config set`.
func (c *Global) Set(key, value string) error {
	var err error
	switch key {
	case "forest_trees":
		c.ForestTrees, err = cast.ToIntE(value)
	case "forest_sample_size":
		c.ForestSampleSize, err = cast.ToIntE(value)
	case "forest_seed":
		c.ForestSeed, err = cast.ToInt64E(value)
	case "knn_neighbors":
		c.KNNNeighbors, err = cast.ToIntE(value)
	case "max_outlier_rounds":
		c.MaxOutlierRounds, err = cast.ToIntE(value)
	case "datetime_ratio":
		c.DatetimeRatio, err = cast.ToFloat64E(value)
		if err == nil && (c.DatetimeRatio <= 0 || c.DatetimeRatio > 1) {
			err = errors.New("must be in (0, 1]")
		}
	case "identifier_columns":
		c.IdentifierColumns = splitList(value)
	case "presets_dir":
		c.PresetsDir = value
	case "export_dir":
		c.ExportDir = value
	case "server_addr":
		c.ServerAddr = value
	case "log_level":
		c.LogLevel = strings.ToLower(value)
	default:
		return fmt.Errorf("unknown key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// Get renders one key for `config show`.
func (c *Global) Get(key string) (string, error) {
	switch key {
	case "forest_trees":
		return cast.ToString(c.ForestTrees), nil
	case "forest_sample_size":
		return cast.ToString(c.ForestSampleSize), nil
	case "forest_seed":
		return cast.ToString(c.ForestSeed), nil
	case "knn_neighbors":
		return cast.ToString(c.KNNNeighbors), nil
	case "max_outlier_rounds":
		return cast.ToString(c.MaxOutlierRounds), nil
	case "datetime_ratio":
		return cast.ToString(c.DatetimeRatio), nil
	case "identifier_columns":
		return strings.Join(c.IdentifierColumns, ","), nil
	case "presets_dir":
		return c.PresetsDir, nil
	case "export_dir":
		return c.ExportDir, nil
	case "server_addr":
		return c.ServerAddr, nil
	case "log_level":
		return c.LogLevel, nil
	}
	return "", fmt.Errorf("unknown key %q", key)
}

// Pipeline converts the configuration into session options.
func (c *Global) Pipeline() pipeline.Options {
	return pipeline.Options{
		Forest: isoforest.Options{
			Trees:      c.ForestTrees,
			SampleSize: c.ForestSampleSize,
			Seed:       c.ForestSeed,
		},
		Neighbors:        c.KNNNeighbors,
		MaxOutlierRounds: c.MaxOutlierRounds,
		Identifiers:      c.IdentifierColumns,
	}
}

// Ingest converts the configuration into reader options.
func (c *Global) Ingest() ingest.Options {
	opt := ingest.DefaultOptions()
	if c.DatetimeRatio > 0 {
		opt.DatetimeRatio = c.DatetimeRatio
	}
	return opt
}
