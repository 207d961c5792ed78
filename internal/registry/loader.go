package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modelkit/internal/common/fsutil"
	"modelkit/internal/model"
)

// LoadDir scans a directory for *.json files and builds one model per file.
// Each model is named after its file stem with dots replaced by underscores
// and all of them share opts.Router, so one transaction spans the directory.
// opts.Name is ignored. Files are loaded in name order.
func LoadDir(dir string, opts model.Options) ([]*model.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []*model.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if fsutil.Ext(name) != ".json" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(abs, name))
		if err != nil {
			return nil, err
		}
		o := opts
		o.Name = modelName(name)
		m, err := model.FromJSON(b, o)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		models = append(models, m)
	}
	return models, nil
}

// modelName turns "user.prefs.json" into "user_prefs".
func modelName(file string) string {
	stem := strings.TrimSuffix(file, filepath.Ext(file))
	return strings.ReplaceAll(stem, ".", "_")
}
