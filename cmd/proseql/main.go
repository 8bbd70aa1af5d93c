// Command proseql is the thin CLI surface over the database facade
// (spec §6): init/create/update/delete/collections/describe/stats/convert/
// migrate, none of which touch storage or query internals directly.
// Grounded on cuemby-warren/cmd/warren/main.go's root-command-plus-
// cobra.OnInitialize shape.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/proseql/proseql"
	"github.com/proseql/proseql/internal/applog"
	"github.com/proseql/proseql/internal/codec"
	"github.com/proseql/proseql/internal/docval"
	"github.com/proseql/proseql/internal/query"
	"github.com/proseql/proseql/internal/storage"
	"github.com/spf13/cobra"
)

var (
	// Version is set via -ldflags at build time.
	Version = "dev"

	dir      string
	registry *codec.Registry
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "proseql",
	Short:   "ProseQL - an embedded, schema-validated document database",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dir, "dir", ".", "project directory")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs as JSON")

	cobra.OnInitialize(func() {
		registry = codec.Default(applog.WithComponent("cli"))
		initLogging()
	})

	rootCmd.AddCommand(initCmd, createCmd, updateCmd, deleteCmd, collectionsCmd,
		describeCmd, statsCmd, convertCmd, migrateCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	applog.Init(applog.Config{Level: applog.Level(level), JSONOutput: jsonOut})
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new ProseQL project",
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		if format == "" {
			format = "json"
		}
		path := fmt.Sprintf("%s/%s.%s", dir, defaultConfigBase, format)
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		cfg := &projectConfig{Collections: map[string]projectCollection{}}
		if err := saveProjectConfig(path, registry, cfg); err != nil {
			return err
		}
		fmt.Printf("Initialized ProseQL project: %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().String("format", "json", "config format: json|yaml|toml")
}

func openDatabase() (*proseql.Database, *projectConfig, string, error) {
	path, err := findProjectConfig(dir, registry)
	if err != nil {
		return nil, nil, "", err
	}
	cfg, err := loadProjectConfig(path, registry)
	if err != nil {
		return nil, nil, "", err
	}
	db, err := proseql.OpenPersistent(cfg.toDatabaseConfig(), storage.NewFilesystem(dir))
	if err != nil {
		return nil, nil, "", err
	}
	return db, cfg, path, nil
}

// ensureDeclared adds name to cfg (file = "<name>.json") if it isn't
// already declared, so `create` works against a collection never
// mentioned in the project config.
func ensureDeclared(cfg *projectConfig, name string) bool {
	if _, ok := cfg.Collections[name]; ok {
		return false
	}
	cfg.Collections[name] = projectCollection{File: name + ".json"}
	return true
}

var createCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Create an entity in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		data, _ := cmd.Flags().GetString("data")
		if data == "" {
			return fmt.Errorf("--data is required")
		}

		path, err := findProjectConfig(dir, registry)
		if err != nil {
			return err
		}
		cfg, err := loadProjectConfig(path, registry)
		if err != nil {
			return err
		}
		added := ensureDeclared(cfg, name)

		db, err := proseql.OpenPersistent(cfg.toDatabaseConfig(), storage.NewFilesystem(dir))
		if err != nil {
			return err
		}
		defer db.Shutdown()

		var input proseql.Record
		if err := json.Unmarshal([]byte(data), &input); err != nil {
			return fmt.Errorf("--data is not a JSON object: %w", err)
		}

		col := db.Collection(name)
		rec, err := col.Create(docval.Normalize(input).(docval.Map))
		if err != nil {
			return err
		}
		if err := db.Flush(); err != nil {
			return fmt.Errorf("saved to memory but flush failed: %w", err)
		}
		if added {
			if err := saveProjectConfig(path, registry, cfg); err != nil {
				return fmt.Errorf("entity created but config update failed: %w", err)
			}
		}

		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	createCmd.Flags().String("data", "", "entity fields as a JSON object (required)")
}

var updateCmd = &cobra.Command{
	Use:   "update <collection> <id>",
	Short: "Update fields of an existing entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, id := args[0], args[1]
		set, _ := cmd.Flags().GetString("set")
		if set == "" {
			return fmt.Errorf("--set is required (k=v,k2=v2,...)")
		}

		db, _, _, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		updates, err := parseSetList(set)
		if err != nil {
			return err
		}

		col := db.Collection(name)
		if col == nil {
			return fmt.Errorf("unknown collection %q", name)
		}
		rec, err := col.Update(id, updates)
		if err != nil {
			return err
		}
		if err := db.Flush(); err != nil {
			return err
		}

		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	updateCmd.Flags().String("set", "", "comma-separated field=value pairs (required)")
}

// parseSetList parses "k=v,k2=v2" into a Record, attempting to decode
// each value as JSON first (so numbers/bools/lists work) and falling
// back to a bare string.
func parseSetList(s string) (proseql.Record, error) {
	out := proseql.Record{}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed --set entry %q, expected field=value", pair)
		}
		key, raw := parts[0], parts[1]
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Delete an entity, cascading per its declared relationships",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, id := args[0], args[1]
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Refusing to delete %s/%s without --force\n", name, id)
			return fmt.Errorf("confirmation required: pass --force")
		}

		db, _, _, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		col := db.Collection(name)
		if col == nil {
			return fmt.Errorf("unknown collection %q", name)
		}
		result, err := col.Delete(id, proseql.DeleteOptions{})
		if err != nil {
			return err
		}
		if err := db.Flush(); err != nil {
			return err
		}
		fmt.Printf("Deleted %s/%s\n", name, id)
		for coll, cc := range result.Cascaded {
			fmt.Printf("  cascaded %s: %d (%v)\n", coll, cc.Count, cc.IDs)
		}
		return nil
	},
}

func init() {
	deleteCmd.Flags().Bool("force", false, "required to actually perform the deletion")
}

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "List declared collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, _, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		names := make([]string, 0, len(cfg.Collections))
		for name := range cfg.Collections {
			names = append(names, name)
		}
		fmt.Printf("%-20s %-10s %s\n", "NAME", "COUNT", "FILE")
		for _, name := range names {
			col := db.Collection(name)
			count, err := col.Query(countQuery())
			if err != nil {
				return err
			}
			fmt.Printf("%-20s %-10d %s\n", name, len(count.Items), cfg.Collections[name].File)
		}
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <collection>",
	Short: "Describe a collection's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		_, cfg, _, err := openDatabase()
		if err != nil {
			return err
		}
		pc, ok := cfg.Collections[name]
		if !ok {
			return fmt.Errorf("unknown collection %q", name)
		}
		fmt.Printf("Collection: %s\n", name)
		fmt.Printf("  File:          %s\n", pc.File)
		fmt.Printf("  Format:        %s\n", orDefault(pc.Format, "(inferred from extension)"))
		fmt.Printf("  Version:       %d\n", pc.Version)
		fmt.Printf("  Indexes:       %v\n", pc.Indexes)
		fmt.Printf("  Unique fields: %v\n", pc.UniqueFields)
		fmt.Printf("  Search fields: %v\n", pc.SearchFields)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show counts across every declared collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, _, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Shutdown()

		total := 0
		for name := range cfg.Collections {
			result, err := db.Collection(name).Query(countQuery())
			if err != nil {
				return err
			}
			total += len(result.Items)
		}
		fmt.Printf("Collections: %d\n", len(cfg.Collections))
		fmt.Printf("Entities:    %d\n", total)
		fmt.Printf("Pending writes: %d\n", db.PendingCount())
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert <collection> <targetFormat>",
	Short: "Re-encode a collection's file under a different format",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, target := args[0], args[1]
		path, err := findProjectConfig(dir, registry)
		if err != nil {
			return err
		}
		cfg, err := loadProjectConfig(path, registry)
		if err != nil {
			return err
		}
		pc, ok := cfg.Collections[name]
		if !ok {
			return fmt.Errorf("unknown collection %q", name)
		}

		srcPath := dir + "/" + pc.File
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return err
		}
		srcCodec, err := registry.Resolve(pc.File, pc.Format)
		if err != nil {
			return err
		}
		decoded, err := srcCodec.Decode(string(data))
		if err != nil {
			return err
		}

		dstCodec, err := registry.Resolve("x."+target, "")
		if err != nil {
			return err
		}
		text, err := dstCodec.Encode(decoded)
		if err != nil {
			return err
		}

		base := strings.TrimSuffix(pc.File, "."+extOf(pc.File))
		dstFile := base + "." + target
		if err := os.WriteFile(dir+"/"+dstFile, []byte(text), 0o644); err != nil {
			return err
		}

		pc.File = dstFile
		pc.Format = ""
		cfg.Collections[name] = pc
		if err := saveProjectConfig(path, registry, cfg); err != nil {
			return err
		}

		fmt.Printf("Converted %s -> %s\n", srcPath, dir+"/"+dstFile)
		return nil
	},
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return path[i+1:]
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [status]",
	Short: "Report or apply pending schema migrations",
	Args:  cobra.MaximumNArgs(1),
	Long: `Every declared collection's file is inspected for its _version
marker and compared against the config's declared version. The CLI
cannot express migration transforms itself (those are Go closures
supplied by application code embedding the proseql package); this
command reports each file's version against the declared one. With
--force it opens the database against the files on disk and flushes
it. Since the CLI registers no migration transforms, a collection that
declares a version above 0 fails to open, and no file is rewritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		force, _ := cmd.Flags().GetBool("force")

		path, err := findProjectConfig(dir, registry)
		if err != nil {
			return err
		}
		cfg, err := loadProjectConfig(path, registry)
		if err != nil {
			return err
		}

		if len(args) > 0 && args[0] == "status" {
			dryRun = true
		}

		for name, pc := range cfg.Collections {
			srcPath := dir + "/" + pc.File
			data, err := os.ReadFile(srcPath)
			if err != nil {
				fmt.Printf("%s: no file yet, version 0\n", name)
				continue
			}
			c, err := registry.Resolve(pc.File, pc.Format)
			if err != nil {
				return err
			}
			decoded, err := c.Decode(string(data))
			if err != nil {
				return err
			}
			raw, _ := docval.Normalize(decoded).(docval.Map)
			fileVersion := 0
			if v, ok := docval.ToFloat(raw["_version"]); ok {
				fileVersion = int(v)
			}
			if fileVersion == pc.Version {
				fmt.Printf("%s: up to date at version %d\n", name, pc.Version)
			} else {
				fmt.Printf("%s: file at version %d, config declares %d\n", name, fileVersion, pc.Version)
			}
		}

		if dryRun || !force {
			return nil
		}
		// Opening loads and validates every collection file against its
		// declared version. Opening schedules no save, so the Flush below
		// rewrites no file.
		db, err := proseql.OpenPersistent(cfg.toDatabaseConfig(), storage.NewFilesystem(dir))
		if err != nil {
			return err
		}
		defer db.Shutdown()
		return db.Flush()
	},
}

func init() {
	migrateCmd.Flags().Bool("dry-run", false, "report pending ranges without writing")
	migrateCmd.Flags().Bool("force", false, "open every collection against its declared version (rewrites no file)")
}

func countQuery() query.Options {
	return query.Options{}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
