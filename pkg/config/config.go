// Package config provides the process configuration from the command line.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrInvalidConfig is returned by Parse when a flag value is rejected.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the CLI configuration.
type Config struct {
	// ScriptPath is the scene script to load.
	ScriptPath string
	// Object names the object to chop. Empty means the first one.
	Object string
	// Chops is how many chops to perform.
	Chops int
	// Seed feeds the chop RNG so runs are reproducible.
	Seed uint64
	// TickStep is the simulated time between chops.
	TickStep float64
	// MeshCells is the marching cubes resolution for non-box shapes.
	MeshCells int
	// Output is where render buffers are written as JSON. Empty skips it.
	Output string

	LoggingLevel string
}

var availableLoggingLevels = []string{"panic", "fatal", "error", "warn", "info", "debug"}
var availableLoggingLevelsString = strings.Join(availableLoggingLevels, ", ")

// Parse reads the configuration from args (without the program name).
func Parse(args []string, stderr io.Writer) (Config, error) {
	config := Config{}

	fs := flag.NewFlagSet("notch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&config.ScriptPath, "script", "", "scene script to load")
	fs.StringVar(&config.Object, "object", "", "object to chop (default: first object)")
	fs.IntVar(&config.Chops, "chops", 1, "number of chops to perform")
	fs.Uint64Var(&config.Seed, "seed", 1, "random seed for weak point and tilt selection")
	fs.Float64Var(&config.TickStep, "tick", 1, "seconds of simulated time between chops")
	fs.IntVar(&config.MeshCells, "mesh-cells", 64, "marching cubes resolution for smooth shapes")
	fs.StringVar(&config.Output, "out", "", "write render buffers as JSON to this file")
	fs.StringVar(&config.LoggingLevel, "logging-level", "info", "logging level, one of: "+availableLoggingLevelsString)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	config.LoggingLevel = strings.ToLower(config.LoggingLevel)
	if err := config.Validate(); err != nil {
		fmt.Fprintf(stderr, "%v\n\n", err)
		fs.Usage()
		return Config{}, err
	}
	return config, nil
}

// Validate reports every rejected setting at once.
func (c Config) Validate() error {
	var problems []string
	if c.ScriptPath == "" {
		problems = append(problems, "missing -script")
	}
	if c.Chops < 0 {
		problems = append(problems, fmt.Sprintf("invalid chops: %d", c.Chops))
	}
	if c.TickStep < 0 {
		problems = append(problems, fmt.Sprintf("invalid tick: %v", c.TickStep))
	}
	if c.MeshCells <= 0 {
		problems = append(problems, fmt.Sprintf("invalid mesh-cells: %d", c.MeshCells))
	}
	if !validateLoggingLevel(c.LoggingLevel) {
		problems = append(problems, fmt.Sprintf("invalid logging-level: %q", c.LoggingLevel))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Level returns the logrus level for LoggingLevel, defaulting to info.
func (c Config) Level() logrus.Level {
	l, err := logrus.ParseLevel(c.LoggingLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

func validateLoggingLevel(loggingLevel string) bool {
	for _, l := range availableLoggingLevels {
		if l == loggingLevel {
			return true
		}
	}
	return false
}
