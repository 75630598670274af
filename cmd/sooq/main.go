package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sooqsearch/internal/attrs"
	"sooqsearch/internal/cache"
	"sooqsearch/internal/config"
	"sooqsearch/internal/embedding"
	"sooqsearch/internal/hotcache"
	"sooqsearch/internal/llm"
	"sooqsearch/internal/logging"
	"sooqsearch/internal/matcher"
	"sooqsearch/internal/parser"
	"sooqsearch/internal/search"
	"sooqsearch/internal/semcache"
	"sooqsearch/internal/service"
	"sooqsearch/internal/store"
	"sooqsearch/internal/types"
)

var (
	// Global flags
	configPath string
	verbose    bool
	lang       string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sooq",
	Short: "sooq - natural-language search for classifieds",
	Long: `sooq parses free-text Arabic and English queries into catalog-grounded
intents and retrieves ranked listings.

Parsing escalates through tiers: exact cache, database matching, semantic
cache, and finally short LLM hint prompts. The LLM only ever suggests;
every hint is re-resolved against the live catalog.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.Close()
	},
}

// parseCmd parses a query and prints the intent
var parseCmd = &cobra.Command{
	Use:   "parse [query]",
	Short: "Parse a query into a catalog-grounded intent",
	Long: `Runs the tiered parser on a single query and prints the resulting
intent as JSON.

Example:
  sooq parse "بدي سيارة تويوتا بدمشق تحت 100 مليون"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

// searchCmd parses and retrieves
var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search listings with a natural-language query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

// migrateCmd creates the schema
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

// evictCmd runs one semantic-cache eviction pass
var evictCmd = &cobra.Command{
	Use:   "evict",
	Short: "Evict cold and expired semantic-cache entries",
	RunE:  runEvict,
}

// healthCmd checks liveness
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check store liveness and parser tier statistics",
	RunE:  runHealth,
}

var (
	searchPage  int
	searchLimit int
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVarP(&lang, "lang", "l", types.LangArabic, "query language (ar|en)")

	searchCmd.Flags().IntVar(&searchPage, "page", 1, "result page")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "page size (0 uses the configured default)")

	rootCmd.AddCommand(parseCmd, searchCmd, migrateCmd, evictCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// app bundles everything the commands need.
type app struct {
	cfg     config.Config
	store   *store.Store
	service *service.Service
	sem     *semcache.Cache
}

// resolveConfigPath honors --config first, SOOQ_CONFIG second.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("SOOQ_CONFIG")
}

// newApp loads config and wires the full pipeline.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(logging.Options{
		Dir:        cfg.Logging.Dir,
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
	}); err != nil {
		return nil, err
	}

	st, err := store.New(ctx, store.Config{
		DSN:     cfg.Store.DSN,
		PoolMin: cfg.Store.PoolMin,
		PoolMax: cfg.Store.PoolMax,
	})
	if err != nil {
		return nil, err
	}

	hot := hotcache.New(st, hotcache.Config{
		TTL:            cfg.HotCache.TTL,
		TopNCategories: cfg.HotCache.TopNCategories,
	})
	if err := hot.Initialize(ctx); err != nil {
		st.Close()
		return nil, err
	}

	m := matcher.New(st, hot)

	// Embedding and LLM collaborators are optional: without keys the
	// parser simply stops at tier 1 and retrieval stays lexical.
	var engine embedding.Engine
	if cfg.Embedding.APIKey != "" {
		engine, err = embedding.NewOpenAIEngine(embedding.OpenAIConfig{
			APIKey:    cfg.Embedding.APIKey,
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			Dimension: cfg.Embedding.Dimension,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	var hints *llm.HintExtractor
	if cfg.LLM.APIKey != "" {
		client, err := llm.NewOpenAIClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			st.Close()
			return nil, err
		}
		hints = llm.NewHintExtractor(client)
	}

	var sem *semcache.Cache
	if engine != nil {
		sem = semcache.New(st, engine, cfg.Parser.SemanticCacheSimilarity)
	}

	exact := cache.New[*types.Intent](cfg.Parser.ExactCacheSize, cfg.Parser.ExactCacheTTL)
	var semIface parser.SemanticCache
	if sem != nil {
		semIface = sem
	}
	var hintIface parser.HintSource
	if hints != nil {
		hintIface = hints
	}
	p := parser.New(m, semIface, hintIface, attrs.Extract, exact, parser.Config{
		Tier1ConfidenceThreshold: cfg.Parser.Tier1ConfidenceThreshold,
		Tier3Timeout:             cfg.Parser.Tier3Timeout,
		Tier4Timeout:             cfg.Parser.Tier4Timeout,
	})

	var embIface search.Embedder
	if engine != nil {
		embIface = engine
	}
	var valIface search.CategoryValidator
	if hints != nil {
		valIface = hints
	}
	orch := search.New(st, embIface, valIface, hot, search.Config{
		CategoryGateLow:     cfg.Retrieval.CategoryGateLow,
		CategoryGateHigh:    cfg.Retrieval.CategoryGateHigh,
		VectorMethodMinConf: cfg.Retrieval.VectorMethodMinConf,
		ResultCacheTTL:      cfg.Retrieval.ResultCacheTTL,
		ResultCacheSize:     cfg.Retrieval.ResultCacheSize,
		DefaultLimit:        cfg.Retrieval.DefaultLimit,
		MaxFallbackDepth:    cfg.Retrieval.MaxFallbackDepth,
		CandidatePoolSize:   cfg.Retrieval.CandidatePoolSize,
	})

	svc := service.New(service.Deps{
		Parser:   p,
		Searcher: orch,
		Store:    st,
		Hot:      hot,
		Sem:      sem,
		Evictor: service.EvictorConfig{
			Interval: cfg.Parser.SemanticCacheEvictInterval,
			Policy: semcache.EvictionPolicy{
				MinHits:    cfg.Parser.SemanticCacheMinHits,
				StaleAfter: cfg.Parser.SemanticCacheStaleAfter,
				MaxAge:     cfg.Parser.SemanticCacheMaxAge,
			},
		},
		LLMConfigured:       hints != nil,
		EmbeddingConfigured: engine != nil,
	})

	// Background semantic-cache eviction runs for as long as the command
	// does; one-shot commands tear it down with ctx.
	svc.StartEvictor(ctx)

	return &app{cfg: cfg, store: st, service: svc, sem: sem}, nil
}

func (a *app) close() {
	a.store.Close()
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	query := joinArgs(args)
	intent, err := a.service.Parse(ctx, query, lang)
	if err != nil {
		return err
	}
	return printJSON(intent)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	query := joinArgs(args)
	page, err := a.service.Search(ctx, query, lang, searchPage, searchLimit)
	if err != nil {
		return err
	}
	return printJSON(page)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return err
	}
	st, err := store.New(ctx, store.Config{
		DSN:     cfg.Store.DSN,
		PoolMin: cfg.Store.PoolMin,
		PoolMax: cfg.Store.PoolMax,
	})
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx, cfg.Embedding.Dimension); err != nil {
		return err
	}
	logger.Info("migration complete", zap.Int("embedding_dim", cfg.Embedding.Dimension))
	return nil
}

func runEvict(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if a.sem == nil {
		return fmt.Errorf("semantic cache disabled (no embedding key configured)")
	}
	n, err := a.sem.Evict(ctx, semcache.EvictionPolicy{
		MinHits:    a.cfg.Parser.SemanticCacheMinHits,
		StaleAfter: a.cfg.Parser.SemanticCacheStaleAfter,
		MaxAge:     a.cfg.Parser.SemanticCacheMaxAge,
	})
	if err != nil {
		return err
	}
	logger.Info("eviction complete", zap.Int64("removed", n))
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	h, err := a.service.HealthCheck(ctx)
	if err != nil {
		_ = printJSON(h)
		return err
	}
	return printJSON(h)
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
