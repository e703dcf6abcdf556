package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"timetable-import/internal/cache"
	"timetable-import/internal/config"
	"timetable-import/internal/filewalker"
	"timetable-import/internal/graph"
	"timetable-import/internal/ingest"
	"timetable-import/internal/parser"
	"timetable-import/internal/schedule"
	"timetable-import/internal/store"
	"timetable-import/internal/textutil"
	"timetable-import/internal/worker"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rulesPath string

// Execute runs the CLI application.
func Execute() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := NewRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree writing results to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "timetable-import",
		Short:        "Import school timetables from portal exports and AI responses",
		Long:         "Parses copy-pasted, TSV and HTML timetable exports and truncated JSON responses into schedule entries, then stores them in PostgreSQL and Neo4j.",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setLogLevel(config.Load().LogLevel)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.PersistentFlags().StringVar(&rulesPath, "rules", "", "Path to a TOML rules file (default $RULES_FILE)")

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(importsCmd())
	rootCmd.AddCommand(entriesCmd())
	rootCmd.AddCommand(teacherCmd())

	return rootCmd
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file|->",
		Short: "Parse one timetable file (or stdin) and print the document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entriesOnly, _ := cmd.Flags().GetBool("entries")
			return runParse(cmd, args[0], entriesOnly)
		},
	}
	cmd.Flags().Bool("entries", false, "Print flattened schedule entries instead of the document")
	return cmd
}

func exportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <input-dir> <output-dir>",
		Short: "Parse every timetable under a directory and write one JSON result per file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], args[1])
		},
	}
}

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <directory>",
		Short: "Parse timetable exports and store them in PostgreSQL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			withGraph, _ := cmd.Flags().GetBool("graph")
			return runImport(args[0], withGraph)
		},
	}
	cmd.Flags().Bool("graph", false, "Also project imported entries into Neo4j")
	return cmd
}

func importsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "imports",
		Short: "List stored imports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return withStore(func(ctx context.Context, st *store.Store) error {
				sums, err := st.ListImports(ctx, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sums)
			})
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum number of imports to list")
	return cmd
}

func entriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "entries <import-id>",
		Short: "Print the stored entries of one import",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid import id %q: %w", args[0], err)
			}
			return withStore(func(ctx context.Context, st *store.Store) error {
				entries, err := st.ListEntries(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
}

func teacherCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teacher <name>",
		Short: "Print a teacher's classes from the schedule graph",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := setupContext()
			defer cancel()

			cfg := config.Load()
			driver, err := connectNeo4j(ctx, cfg)
			if err != nil {
				return err
			}
			defer driver.Close(ctx)

			entries, err := graph.NewGraphQuerier(driver).TeacherSchedule(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		},
	}
}

// loadRules resolves the rules file from the flag or RULES_FILE.
func loadRules(cfg *config.Config) (*config.Rules, error) {
	path := rulesPath
	if path == "" {
		path = cfg.RulesFile
	}
	return config.LoadRules(path)
}

func newEngine(cfg *config.Config) (*ingest.Engine, *schedule.Cycle, error) {
	rules, err := loadRules(cfg)
	if err != nil {
		return nil, nil, err
	}
	cycle, err := rules.DayCycle()
	if err != nil {
		return nil, nil, err
	}
	return ingest.NewEngine(parser.New(rules.ParserOptions())), cycle, nil
}

// runParse handles the `parse` command.
func runParse(cmd *cobra.Command, path string, entriesOnly bool) error {
	cfg := config.Load()
	engine, _, err := newEngine(cfg)
	if err != nil {
		return err
	}

	var res *ingest.Result
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		res, err = engine.ParseText(string(data))
		if err != nil {
			return err
		}
	} else {
		p, err := filewalker.NewWalker(engine).ParserFor(path)
		if err != nil {
			return err
		}
		if res, err = p.Parse(path); err != nil {
			return err
		}
	}

	log.Info().
		Str("method", string(res.Method)).
		Str("stage", res.Stage).
		Int("days", len(res.Document.Days)).
		Int("periods", len(res.Document.Periods)).
		Int("entries", len(res.Entries)).
		Msg("Parsed timetable")

	if entriesOnly {
		return printJSON(cmd.OutOrStdout(), res.Entries)
	}
	return printJSON(cmd.OutOrStdout(), res.Document)
}

// parseAll walks a directory and parses every supported file in the pool.
func parseAll(ctx context.Context, cfg *config.Config, engine *ingest.Engine, dir string,
	fn worker.ProcessFunc[filewalker.FileEntry, *ingest.Result]) ([]worker.Task[filewalker.FileEntry, *ingest.Result], error) {
	w := filewalker.NewWalker(engine)
	entries, err := w.Walk(dir)
	if err != nil {
		return nil, fmt.Errorf("walk input directory: %w", err)
	}
	if fn == nil {
		fn = func(_ context.Context, entry filewalker.FileEntry) (*ingest.Result, error) {
			return w.ParseFile(entry)
		}
	}

	log.Info().Int("files", len(entries)).Int("workers", cfg.WorkerCount).Msg("Starting timetable parsing")
	return worker.NewPool(cfg.WorkerCount, fn).Execute(ctx, entries), nil
}

// runExport handles the `export` command.
func runExport(inputDir, outputDir string) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	engine, _, err := newEngine(cfg)
	if err != nil {
		return err
	}

	results, err := parseAll(ctx, cfg, engine, inputDir, nil)
	if err != nil {
		return err
	}

	inputAbs, _ := filepath.Abs(inputDir)
	outputAbs, _ := filepath.Abs(outputDir)

	written := 0
	for _, pr := range results {
		if pr.Err != nil || pr.Result == nil {
			continue
		}

		relPath, err := filepath.Rel(inputAbs, pr.Input.Path)
		if err != nil {
			log.Error().Err(err).Msg("Compute relative path")
			continue
		}
		outPath := filepath.Join(outputAbs, relPath+".json")

		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Create output directory")
			continue
		}
		if err := writeJSONFile(outPath, pr.Result); err != nil {
			log.Error().Err(err).Str("path", outPath).Msg("Write output file")
			continue
		}
		written++

		log.Info().
			Str("input", pr.Input.Path).
			Str("output", outPath).
			Int("entries", len(pr.Result.Entries)).
			Msg("Timetable exported")
	}

	log.Info().Int("files", len(results)).Int("written", written).Str("output", outputDir).Msg("Export complete")
	return nil
}

// runImport handles the `import` command.
func runImport(inputDir string, withGraph bool) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	engine, cycle, err := newEngine(cfg)
	if err != nil {
		return err
	}

	pgPool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	st := store.New(pgPool, cycle)
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	var builder *graph.GraphBuilder
	if withGraph {
		driver, err := connectNeo4j(ctx, cfg)
		if err != nil {
			return err
		}
		defer driver.Close(ctx)

		builder = graph.NewGraphBuilder(driver)
		if err := builder.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure graph schema: %w", err)
		}
	}

	docCache := cache.NewDocumentCache(st)
	if err := docCache.Preload(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to preload cache")
	}

	results, err := parseAll(ctx, cfg, engine, inputDir,
		func(ctx context.Context, entry filewalker.FileEntry) (*ingest.Result, error) {
			data, err := os.ReadFile(entry.Path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", entry.Path, err)
			}
			if _, cached := docCache.Get(ctx, string(data)); cached {
				log.Debug().Str("file", entry.Path).Msg("Unchanged since last import, skipping")
				return nil, nil
			}

			res, err := entry.Parser.Parse(entry.Path)
			if err != nil {
				return nil, err
			}
			res.Hash = textutil.Hash(string(data))
			return res, nil
		})
	if err != nil {
		return err
	}

	stored, skipped, failed := saveResults(ctx, st, docCache, builder, results)

	log.Info().
		Int("files", len(results)).
		Int("stored", stored).
		Int("unchanged", skipped).
		Int("failed", failed).
		Msg("Import complete")

	if failed > 0 && stored == 0 && skipped == 0 {
		return fmt.Errorf("no timetable could be imported (%d failed)", failed)
	}
	return nil
}

// importSaver persists one parsed file, normally *store.Store.
type importSaver interface {
	SaveImport(ctx context.Context, imp *store.Import) (uuid.UUID, error)
}

// saveResults stores every parsed file whose content hash is not cached yet
// and projects it into the graph when a builder is given. Files that repeat
// content already saved, including earlier in the same run, are skipped.
func saveResults(ctx context.Context, saver importSaver, docCache *cache.DocumentCache,
	builder *graph.GraphBuilder, results []worker.Task[filewalker.FileEntry, *ingest.Result]) (stored, skipped, failed int) {
	for _, pr := range results {
		switch {
		case pr.Err != nil:
			failed++
			continue
		case pr.Result == nil:
			skipped++
			continue
		}

		res := pr.Result
		if _, cached := docCache.GetHash(ctx, res.Hash); cached {
			log.Debug().Str("file", res.Source).Msg("Same content already imported, skipping")
			skipped++
			continue
		}

		id, err := saver.SaveImport(ctx, &store.Import{
			Source:   res.Source,
			Hash:     res.Hash,
			Format:   res.Format,
			Method:   string(res.Method),
			Stage:    res.Stage,
			Document: res.Document,
			Entries:  res.Entries,
		})
		if err != nil {
			log.Error().Err(err).Str("file", res.Source).Msg("Store import failed")
			failed++
			continue
		}
		docCache.Set(res.Hash, res.Document)
		stored++

		if builder != nil {
			if err := builder.UpsertEntries(ctx, id.String(), res.Entries); err != nil {
				log.Warn().Err(err).Str("file", res.Source).Msg("Failed to project entries into graph")
			}
		}
	}
	return stored, skipped, failed
}

func withStore(fn func(ctx context.Context, st *store.Store) error) error {
	ctx, cancel := setupContext()
	defer cancel()

	cfg := config.Load()
	pgPool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pgPool.Close()

	_, cycle, err := newEngine(cfg)
	if err != nil {
		return err
	}
	return fn(ctx, store.New(pgPool, cycle))
}

// setupContext creates a cancellable context with signal handling.
func setupContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			log.Warn().Msg("Received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

func connectPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect PostgreSQL: %w", err)
	}

	if err := pgPool.Ping(ctx); err != nil {
		pgPool.Close()
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}
	log.Info().Msg("Connected to PostgreSQL")
	return pgPool, nil
}

func connectNeo4j(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("connect Neo4j: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify Neo4j connectivity: %w", err)
	}
	log.Info().Msg("Connected to Neo4j")
	return driver, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := printJSON(f, v); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
