// Copyright 2024 The entigraph Authors.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package xconfig loads the entigraphd daemon's configuration from a
// YAML file and overlays environment variables onto any cobra flag the
// caller left unset, grounded on the teacher's
// cmd/internal/env.CheckEnvironmentVariables (environment overlay) and
// its general viper-based configuration posture.
package xconfig

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// envPrefix is the prefix environment variables are read under; the
// command name follows it, e.g. ENTIGRAPH_SERVE_WRITER_ID.
const envPrefix = "entigraph"

// Config is the daemon's full runtime configuration.
type Config struct {
	WriterID     uint32        `yaml:"writer_id"`
	DataDir      string        `yaml:"data_dir"`
	RingCapacity int           `yaml:"ring_capacity"`
	IdleBackoff  time.Duration `yaml:"idle_backoff"`
	MaxPathDepth int           `yaml:"max_path_depth"`
	MetricsAddr  string        `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file or flags
// override it.
func Default() Config {
	return Config{
		WriterID:     1,
		DataDir:      "./data",
		RingCapacity: 1024,
		IdleBackoff:  250 * time.Millisecond,
		MaxPathDepth: 64,
		MetricsAddr:  ":9090",
	}
}

// LoadFile parses raw, the contents of the YAML configuration file at
// path, starting from Default() so any field the file omits keeps its
// default. It does not read the file itself; path is only used in
// error messages.
func LoadFile(path string, raw []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("xconfig: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvironment overlays ENTIGRAPH_<COMMAND>_<FLAG> environment
// variables onto any flag of cmd that the caller did not explicitly
// set on the command line, mirroring the teacher's
// CheckEnvironmentVariables.
func ApplyEnvironment(cmd *cobra.Command) error {
	v := viper.New()
	v.AutomaticEnv()
	if cmd.Name() == envPrefix {
		v.SetEnvPrefix(cmd.Name())
	} else {
		v.SetEnvPrefix(fmt.Sprintf("%s_%s", envPrefix, cmd.Name()))
	}

	var errs []string
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		name := strings.ReplaceAll(f.Name, "-", "_")
		if !f.Changed && v.IsSet(name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(name))); err != nil {
				errs = append(errs, err.Error())
			}
		}
	})

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("xconfig: mapping environment variables to flags: %s", strings.Join(errs, "; "))
}
