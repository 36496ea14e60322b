// Package jobconfig loads the batch job file accepted by `convcode
// batch -config jobs.yaml`: a list of encode/decode jobs describing the
// codec parameters and input/output paths for each, following the
// teacher's spf13/viper-backed Load/setDefaults/validate shape.
package jobconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level batch job file.
type Config struct {
	Jobs []Job `mapstructure:"jobs"`
}

// Job describes one encode or decode operation to run against an input
// file, writing its result to an output file.
type Job struct {
	Name       string  `mapstructure:"name"`
	Mode       string  `mapstructure:"mode"` // "encode" or "decode"
	K          uint    `mapstructure:"k"`
	Polys      []int   `mapstructure:"polys"`
	DoTail     bool    `mapstructure:"do_tail"`
	Recursive  bool    `mapstructure:"recursive"`
	Interleave uint    `mapstructure:"interleave"` // 0 disables interleaving
	Input      string  `mapstructure:"input"`
	Output     string  `mapstructure:"output"`
}

// Load reads configFile (YAML) into a Config, then validates every job.
// Job fields absent from the file keep their zero values (do_tail and
// recursive false, interleave 0).
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read job file %s: %w", configFile, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job file: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("job file validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jobs", []map[string]any{})
}

func validate(cfg *Config) error {
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("job file must define at least one job")
	}
	for i, j := range cfg.Jobs {
		mode := strings.ToLower(j.Mode)
		if mode != "encode" && mode != "decode" {
			return fmt.Errorf("job %d (%s): mode must be \"encode\" or \"decode\", got %q", i, j.Name, j.Mode)
		}
		if j.K < 1 || j.K > 16 {
			return fmt.Errorf("job %d (%s): k=%d must be in [1,16]", i, j.Name, j.K)
		}
		if len(j.Polys) < 1 || len(j.Polys) > 16 {
			return fmt.Errorf("job %d (%s): must specify between 1 and 16 polys", i, j.Name)
		}
		if j.Input == "" {
			return fmt.Errorf("job %d (%s): input path is required", i, j.Name)
		}
		if j.Output == "" {
			return fmt.Errorf("job %d (%s): output path is required", i, j.Name)
		}
		if _, err := os.Stat(j.Input); err != nil {
			return fmt.Errorf("job %d (%s): input %s: %w", i, j.Name, j.Input, err)
		}
	}
	return nil
}
