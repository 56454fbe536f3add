package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"llm-equity-trader/internal/engine"
	"llm-equity-trader/internal/engine/engineobs"
	"llm-equity-trader/internal/eod"
	"llm-equity-trader/internal/eod/eodobs"
	"llm-equity-trader/internal/interfaces"
	"llm-equity-trader/internal/ledger"
	"llm-equity-trader/internal/llm"
	"llm-equity-trader/internal/llm/claude"
	"llm-equity-trader/internal/llm/deepseek"
	"llm-equity-trader/internal/llm/gemini"
	"llm-equity-trader/internal/llm/llmobs"
	"llm-equity-trader/internal/llm/noop"
	"llm-equity-trader/internal/llm/openai"
	"llm-equity-trader/internal/logger"
	"llm-equity-trader/internal/market"
	"llm-equity-trader/internal/metrics"
	"llm-equity-trader/internal/quotes/kite"
	"llm-equity-trader/internal/quotes/quoteobs"
	"llm-equity-trader/internal/quotes/sina"
	"llm-equity-trader/internal/quotes/yahoo"
	"llm-equity-trader/internal/store"
	"llm-equity-trader/internal/trace"
	"llm-equity-trader/internal/tradelog"
	"llm-equity-trader/internal/types"
)

// system is everything a subcommand needs, built once from config.
type system struct {
	cfg        *store.Config
	ledger     *ledger.Store
	gate       *market.Gate
	quotes     *market.QuoteCache
	journal    *tradelog.Journal
	summarizer interfaces.EodSummarizer
	metrics    *metrics.Metrics
	engines    []interfaces.Engine
}

// initializeSystem loads .env and sets up logging and tracing.
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if err := trace.Init(version); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// buildSystem wires the ledger, quote pipeline and one engine per account.
func buildSystem(ctx context.Context, cfg *store.Config) (*system, error) {
	ldg, err := initializeLedger(cfg)
	if err != nil {
		return nil, err
	}

	s := &system{
		cfg:     cfg,
		ledger:  ldg,
		metrics: metrics.New(),
		journal: tradelog.New(tradelog.DirFromEnv(), cfg.Location()),
	}
	s.gate = market.NewGate(cfg.TradingWindow.Start, cfg.TradingWindow.End, cfg.Location())
	s.summarizer = eodobs.Wrap(eod.NewSummarizer(s.journal, cfg.EODTime))

	src, err := initializeQuoteSource(ctx, cfg)
	if err != nil {
		_ = ldg.Close()
		return nil, err
	}
	s.quotes = market.NewQuoteCache(src, ldg, s.gate, cfg.Universe,
		market.WithTTL(time.Duration(cfg.MarketData.CacheSeconds)*time.Second),
		market.WithMetrics(s.metrics),
	)

	executor := engine.NewExecutor(ldg, cfg.Universe, engine.ExecutorConfigFrom(cfg), s.journal, s.metrics)
	locks := engine.NewAccountLocks()
	rules := llm.PromptRules{MaxPositions: cfg.Risk.MaxPositions, MaxRiskPct: cfg.Risk.MaxRiskPct}

	for _, acct := range cfg.Accounts {
		if _, err := ldg.EnsureModel(ctx, types.Model{
			ID:             acct.ID,
			Name:           acct.Name,
			Provider:       acct.Provider,
			ModelName:      acct.Model,
			InitialCapital: decimal.NewFromFloat(acct.InitialCapital),
		}); err != nil {
			_ = ldg.Close()
			return nil, fmt.Errorf("register account %s: %w", acct.ID, err)
		}

		oracle, err := initializeOracle(ctx, cfg, acct)
		if err != nil {
			_ = ldg.Close()
			return nil, fmt.Errorf("account %s: %w", acct.ID, err)
		}

		eng := engine.New(acct.ID, cfg.Universe, engine.Deps{
			Gate:        s.gate,
			Quotes:      s.quotes,
			History:     src,
			HistoryDays: cfg.MarketData.HistoryDays,
			Trader:      llm.NewTrader(oracle, rules, s.metrics),
			Ledger:      ldg,
			Executor:    executor,
			Locks:       locks,
			Metrics:     s.metrics,
		})
		s.engines = append(s.engines, engineobs.Wrap(eng))
	}
	return s, nil
}

func (s *system) Close() error {
	return s.ledger.Close()
}

func initializeLedger(cfg *store.Config) (*ledger.Store, error) {
	lc := ledger.DefaultConfig(cfg.Ledger.Path)
	if cfg.Ledger.InMemory {
		lc = ledger.InMemoryConfig()
	}
	lc.Logger = logger.Logger()
	st, err := ledger.Open(lc)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	return st, nil
}

// initializeQuoteSource picks the live feed named by market_data.source.
func initializeQuoteSource(ctx context.Context, cfg *store.Config) (quoteobs.Source, error) {
	md := cfg.MarketData
	timeout := time.Duration(md.TimeoutSeconds) * time.Second

	var src quoteobs.Source
	switch md.Source {
	case "KITE":
		k, err := kite.New(kite.Params{
			APIKey:      os.Getenv("KITE_API_KEY"),
			AccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
			Exchange:    os.Getenv("KITE_EXCHANGE"),
			Timeout:     timeout,
		})
		if err != nil {
			return nil, err
		}
		src = k
	case "YAHOO":
		src = yahoo.New(timeout)
	case "SINA", "":
		src = sina.New(sina.Params{
			QuoteURL:          md.BaseURL,
			KlineURL:          md.HistoryURL,
			Timeout:           timeout,
			RequestsPerSecond: md.RequestsPerSecond,
			Debug:             logger.IsDebugEnabled(),
		})
	default:
		return nil, fmt.Errorf("unknown market_data.source %q", md.Source)
	}

	logger.Info(ctx, "Quote source ready", "source", md.Source, "timeout", timeout)
	return quoteobs.Wrap(md.Source, src), nil
}

// initializeOracle builds the account's decision oracle with observability.
func initializeOracle(ctx context.Context, cfg *store.Config, acct store.Account) (interfaces.Oracle, error) {
	opts := llm.Options{
		APIKey:      acct.APIKey(),
		BaseURL:     acct.APIURL,
		Model:       acct.Model,
		System:      cfg.LLM.System,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
	}
	if acct.Provider != "NOOP" && opts.APIKey == "" {
		return nil, fmt.Errorf("provider %s needs an api key in $%s", acct.Provider, acct.APIKeyEnv)
	}

	var (
		oracle interfaces.Oracle
		err    error
	)
	switch acct.Provider {
	case "OPENAI":
		oracle, err = openai.New(opts)
	case "AZURE_OPENAI":
		oracle, err = openai.NewAzure(opts)
	case "DEEPSEEK":
		oracle, err = deepseek.New(ctx, opts)
	case "CLAUDE":
		oracle, err = claude.New(opts)
	case "GEMINI":
		oracle, err = gemini.New(opts)
	case "NOOP":
		oracle = noop.New()
		logger.Warn(ctx, "No LLM provider configured - using Noop oracle (always HOLD)", "account", acct.ID)
	default:
		err = fmt.Errorf("unknown provider %q", acct.Provider)
	}
	if err != nil {
		return nil, err
	}
	return llmobs.Wrap(acct.Provider, oracle), nil
}

// serveMetrics exposes /metrics until ctx is done. Empty listen disables it.
func serveMetrics(ctx context.Context, listen string, m *metrics.Metrics) {
	if listen == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		logger.Info(ctx, "Metrics endpoint listening", "addr", listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(ctx, "Metrics server stopped", err)
		}
	}()
}

// compressOldLogs gzips journal files older than TRADER_LOG_RETENTION_DAYS.
func compressOldLogs(ctx context.Context, j *tradelog.Journal) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	if err := j.CompressOlder(n); err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
	}
}
