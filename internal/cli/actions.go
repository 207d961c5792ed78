// Package cli implements the modelkit command line.
//
//   - cobra_root.go: command tree and flag -> config plumbing.
//   - actions.go:    apply and paths (a model file or a directory of them).
//   - metrics.go:    text dump of the modelkit_* metric families.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"modelkit/internal/common/fsutil"
	"modelkit/internal/config"
	"modelkit/internal/model"
	"modelkit/internal/notify"
	"modelkit/internal/property"
	"modelkit/internal/registry"
	"modelkit/internal/script"
)

// env carries the resolved configuration and writers into actions.
type env struct {
	cfg    config.Config
	out    io.Writer
	errOut io.Writer
	log    zerolog.Logger
}

// Actions are variables so tests can stub them.
var (
	fnApply = runApply
	fnPaths = runPaths
)

func (e *env) newRouter() (*notify.Router, error) {
	opts, err := e.cfg.RouterOptions(e.log)
	if err != nil {
		return nil, err
	}
	return notify.New(opts...), nil
}

func (e *env) loadModel(path string) (*model.Model, error) {
	b, err := fsutil.ReadFile("model", path)
	if err != nil {
		return nil, err
	}
	r, err := e.newRouter()
	if err != nil {
		return nil, err
	}
	m, err := model.FromJSON(b, model.Options{Router: r})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	e.log.Debug().Str("file", path).Msg("model loaded")
	return m, nil
}

// finish runs the shared post-command steps.
func (e *env) finish() error {
	if e.cfg.Metrics {
		return dumpMetrics(e.out)
	}
	return nil
}

func runApply(e *env, modelPath, scriptPath string) error {
	m, err := e.loadModel(modelPath)
	if err != nil {
		return err
	}
	s, err := script.Load(scriptPath)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}
	m.OnChange(func(path string, o, n any) {
		fmt.Fprintf(e.out, "%s: %s -> %s\n", path, script.Format(o), script.Format(n))
	})
	e.log.Info().Int("steps", len(s.Steps)).Bool("coalesce", e.cfg.Coalesce).Msg("running script")
	if err := script.Run(m, s, e.out); err != nil {
		return err
	}
	b, err := m.ToJSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, string(b))
	return nil
}

func runPaths(e *env, target string) error {
	var models []*model.Model
	if dir, err := fsutil.ExpandHome(target); err == nil && isDir(dir) {
		r, err := e.newRouter()
		if err != nil {
			return err
		}
		if models, err = registry.LoadDir(dir, model.Options{Router: r}); err != nil {
			return err
		}
		e.log.Debug().Str("dir", dir).Int("models", len(models)).Msg("directory loaded")
	} else {
		m, err := e.loadModel(target)
		if err != nil {
			return err
		}
		models = append(models, m)
	}
	for _, m := range models {
		m.Walk(func(p *property.Property) {
			fmt.Fprintf(e.out, "%s = %s\n", p.Path(), script.Format(p.Get()))
		})
	}
	return nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
