package main

import (
	"fmt"
	"os"
	"time"

	"github.com/proseql/proseql"
	"github.com/proseql/proseql/internal/codec"
	"github.com/proseql/proseql/internal/docval"
)

// projectCollection is one collection's on-disk declaration inside the
// CLI's project config file. The CLI is a thin, schema-agnostic
// consumer of the library (spec §1): it never declares field types, so
// every collection it opens is unvalidated (CollectionConfig.Schema is
// left nil) and identified purely by its file.
type projectCollection struct {
	File         string   `json:"file"`
	Format       string   `json:"format,omitempty"`
	Indexes      []string `json:"indexes,omitempty"`
	UniqueFields []string `json:"uniqueFields,omitempty"`
	SearchFields []string `json:"searchFields,omitempty"`
	Version      int      `json:"version,omitempty"`
}

// projectConfig is the shape of proseql.config.<ext>, the file `init`
// writes and every other subcommand reads.
type projectConfig struct {
	Collections     map[string]projectCollection `json:"collections"`
	WriteDebounceMs int                           `json:"writeDebounceMs,omitempty"`
}

const defaultConfigBase = "proseql.config"

// findProjectConfig locates proseql.config.<ext> in dir by trying every
// extension the codec registry knows, so `init --format yaml` and
// `init --format toml` round-trip through the same lookup.
func findProjectConfig(dir string, registry *codec.Registry) (string, error) {
	for _, ext := range registry.Extensions() {
		candidate := fmt.Sprintf("%s/%s.%s", dir, defaultConfigBase, ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no %s.<format> found in %s (run 'proseql init' first)", defaultConfigBase, dir)
}

func loadProjectConfig(path string, registry *codec.Registry) (*projectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := registry.Resolve(path, "")
	if err != nil {
		return nil, err
	}
	decoded, err := c.Decode(string(data))
	if err != nil {
		return nil, err
	}
	raw, ok := docval.Normalize(decoded).(docval.Map)
	if !ok {
		return nil, fmt.Errorf("%s did not decode to a mapping", path)
	}

	cfg := &projectConfig{Collections: make(map[string]projectCollection)}
	if v, ok := docval.ToFloat(raw["writeDebounceMs"]); ok {
		cfg.WriteDebounceMs = int(v)
	}
	colls, _ := raw["collections"].(docval.Map)
	for name, v := range colls {
		pc, _ := v.(docval.Map)
		cfg.Collections[name] = projectCollection{
			File:         docval.ToString(pc["file"]),
			Format:       docval.ToString(pc["format"]),
			Indexes:      toStringSlice(pc["indexes"]),
			UniqueFields: toStringSlice(pc["uniqueFields"]),
			SearchFields: toStringSlice(pc["searchFields"]),
			Version:      toInt(pc["version"]),
		}
	}
	return cfg, nil
}

func saveProjectConfig(path string, registry *codec.Registry, cfg *projectConfig) error {
	c, err := registry.Resolve(path, "")
	if err != nil {
		return err
	}

	colls := make(docval.Map, len(cfg.Collections))
	for name, pc := range cfg.Collections {
		colls[name] = docval.Map{
			"file":         pc.File,
			"format":       pc.Format,
			"indexes":      toAnySlice(pc.Indexes),
			"uniqueFields": toAnySlice(pc.UniqueFields),
			"searchFields": toAnySlice(pc.SearchFields),
			"version":      float64(pc.Version),
		}
	}
	mapping := docval.Map{
		"collections":     colls,
		"writeDebounceMs": float64(cfg.WriteDebounceMs),
	}

	text, err := c.Encode(mapping)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

// toDatabaseConfig builds a schema-free proseql.DatabaseConfig from the
// collections declared in cfg. It adds none of its own; `create` first
// declares an unknown collection via ensureDeclared, so
// `proseql create newcoll --data '{...}'` works without a prior
// declaration.
func (cfg *projectConfig) toDatabaseConfig() proseql.DatabaseConfig {
	dbCfg := proseql.DatabaseConfig{
		Collections:   make(map[string]proseql.CollectionConfig, len(cfg.Collections)),
		WriteDebounce: time.Duration(cfg.WriteDebounceMs) * time.Millisecond,
	}
	for name, pc := range cfg.Collections {
		dbCfg.Collections[name] = proseql.CollectionConfig{
			File:         pc.File,
			Format:       pc.Format,
			Indexes:      pc.Indexes,
			UniqueFields: pc.UniqueFields,
			SearchFields: pc.SearchFields,
			Version:      pc.Version,
		}
	}
	return dbCfg
}

func toStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, el := range list {
		out = append(out, docval.ToString(el))
	}
	return out
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func toInt(v any) int {
	f, _ := docval.ToFloat(v)
	return int(f)
}
