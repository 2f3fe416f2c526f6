// Command notch loads a scene script, chops one of its objects a number of
// times on a simulated clock and optionally writes the resulting render
// buffers as JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chazu/notch/pkg/config"
	"github.com/chazu/notch/pkg/kernel/sdfx"
	"github.com/sirupsen/logrus"
)

// Report is what -out receives.
type Report struct {
	Load   LoadResult   `json:"load"`
	Chops  []ChopResult `json:"chops"`
	Meshes []MeshData   `json:"meshes"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	cfg, err := config.Parse(args, stderr)
	if err != nil {
		return 2
	}
	log := config.NamedLoggerTo(stderr, "notch", cfg.Level())

	source, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		log.WithError(err).Error("cannot read script")
		return 1
	}

	app := NewApp(
		WithKernel(sdfx.New(sdfx.WithMeshCells(cfg.MeshCells))),
		WithSeed(cfg.Seed),
		WithAppLogger(log),
	)
	report := Report{Load: app.Load(string(source))}
	for _, w := range report.Load.Warnings {
		log.WithField("object", w.Object).Warn(w.Message)
	}
	if len(report.Load.Errors) > 0 {
		for _, e := range report.Load.Errors {
			log.WithFields(logrus.Fields{"line": e.Line, "object": e.Object}).Error(e.Message)
		}
		return 1
	}

	name := cfg.Object
	if name == "" {
		if len(report.Load.Objects) == 0 {
			log.Error("script declares no objects")
			return 1
		}
		name = report.Load.Objects[0]
	}

	// Simulated clock so runs with the same seed are reproducible.
	now := time.Unix(0, 0).UTC()
	step := time.Duration(cfg.TickStep * float64(time.Second))
	app.Tick(now)
	for i := 0; i < cfg.Chops; i++ {
		res, err := app.Chop(name, now)
		if err != nil {
			log.WithError(err).WithField("chop", i+1).Error("chop failed")
			return 1
		}
		report.Chops = append(report.Chops, res)
		log.WithFields(logrus.Fields{
			"chop":        i + 1,
			"result":      res.Result,
			"reason":      res.Reason,
			"weak_points": res.WeakPointsLeft,
			"volume":      fmt.Sprintf("%.4f", res.Volume),
		}).Info("chop")

		now = now.Add(step)
		app.Tick(now)
	}
	report.Meshes = app.Meshes()

	if cfg.Output == "" {
		return 0
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		log.WithError(err).Error("encode report")
		return 1
	}
	if err := os.WriteFile(cfg.Output, data, 0o644); err != nil {
		log.WithError(err).Error("write report")
		return 1
	}
	log.WithField("path", cfg.Output).Info("report written")
	return 0
}
