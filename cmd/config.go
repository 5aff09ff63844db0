package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML defaults file. Unset keys leave the flag
// values alone.
type FileConfig struct {
	BufferSize      *int    `yaml:"buffer_size"`
	TimerResolution *uint64 `yaml:"timer_resolution"`
	FirstRealJob    *int32  `yaml:"first_real_job"`
	ClusterSize     *int    `yaml:"cluster_size"`
	InversionTopK   *int    `yaml:"inversion_top_k"`
	ParallelDecode  *bool   `yaml:"parallel_decode"`
}

// loadConfig parses a defaults file with strict field checking, so a
// misspelled key is an error rather than a silently ignored setting.
func loadConfig(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg FileConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if c.BufferSize != nil && *c.BufferSize < 0 {
		return fmt.Errorf("buffer_size must be >= 0, got %d", *c.BufferSize)
	}
	if c.TimerResolution != nil && *c.TimerResolution == 0 {
		return errors.New("timer_resolution must be > 0")
	}
	if c.FirstRealJob != nil && *c.FirstRealJob < 0 {
		return fmt.Errorf("first_real_job must be >= 0, got %d", *c.FirstRealJob)
	}
	if c.ClusterSize != nil && *c.ClusterSize <= 0 {
		return fmt.Errorf("cluster_size must be > 0, got %d", *c.ClusterSize)
	}
	return nil
}

// apply copies file values into opts. Flags the user set on the command line
// win over the file.
func (c FileConfig) apply(cmd *cobra.Command, opts *Options) {
	changed := cmd.Flags().Changed
	if c.BufferSize != nil && !changed("buffer") {
		opts.Buffer = *c.BufferSize
	}
	if c.TimerResolution != nil && !changed("timer-resolution") {
		opts.Checker.TimerResolution = *c.TimerResolution
	}
	if c.FirstRealJob != nil && !changed("first-real-job") {
		opts.Checker.FirstRealJob = *c.FirstRealJob
	}
	if c.ClusterSize != nil && !changed("cluster-size") {
		opts.Checker.ClusterSize = *c.ClusterSize
	}
	if c.InversionTopK != nil && !changed("inversion-stats") {
		opts.InversionStats = *c.InversionTopK
	}
	if c.ParallelDecode != nil && !changed("parallel") {
		opts.Parallel = *c.ParallelDecode
	}
}
