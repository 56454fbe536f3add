package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"llm-equity-trader/internal/types"
)

var validate = validator.New()

type Account struct {
	ID             string  `yaml:"id" validate:"required"`
	Name           string  `yaml:"name"`
	InitialCapital float64 `yaml:"initial_capital" validate:"gt=0"`
	Provider       string  `yaml:"provider" validate:"required,oneof=OPENAI AZURE_OPENAI DEEPSEEK CLAUDE GEMINI NOOP"`
	Model          string  `yaml:"model"`
	APIURL         string  `yaml:"api_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
}

// APIKey resolves the account's key from the environment.
func (a Account) APIKey() string {
	if a.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.APIKeyEnv)
}

type TradingWindow struct {
	Start    string `yaml:"start"`
	End      string `yaml:"end"`
	Timezone string `yaml:"timezone"`
}

type MarketData struct {
	Source            string  `yaml:"source" validate:"oneof=SINA KITE YAHOO"`
	CacheSeconds      int     `yaml:"cache_seconds" validate:"gte=0"`
	TimeoutSeconds    int     `yaml:"timeout_seconds" validate:"gt=0,lte=30"`
	HistoryDays       int     `yaml:"history_days" validate:"gte=14"`
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gt=0"`
	BaseURL           string  `yaml:"base_url"`
	HistoryURL        string  `yaml:"history_url"`
}

type Risk struct {
	MaxPositions   int     `yaml:"max_positions" validate:"gt=0"`
	MinRiskPct     float64 `yaml:"min_risk_pct" validate:"gt=0"`
	MaxRiskPct     float64 `yaml:"max_risk_pct" validate:"gt=0,lte=100"`
	DefaultRiskPct float64 `yaml:"default_risk_pct" validate:"gt=0"`
	MaxLeverage    int     `yaml:"max_leverage" validate:"gte=1"`
}

type LLM struct {
	MaxTokens      int     `yaml:"max_tokens" validate:"gt=0"`
	Temperature    float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	TimeoutSeconds int     `yaml:"timeout_seconds" validate:"gt=0"`
	System         string  `yaml:"system"`
}

type Ledger struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

type Config struct {
	PollSeconds   int           `yaml:"poll_seconds" validate:"gt=0"`
	FeeRate       float64       `yaml:"fee_rate" validate:"gte=0,lt=1"`
	EODTime       string        `yaml:"eod_time"`
	TradingWindow TradingWindow `yaml:"trading_window"`
	MarketData    MarketData    `yaml:"market_data"`
	Risk          Risk          `yaml:"risk"`
	LLM           LLM           `yaml:"llm"`
	Accounts      []Account     `yaml:"accounts" validate:"required,min=1,dive"`
	Universe      []types.Stock `yaml:"universe" validate:"required,min=1"`
	Ledger        Ledger        `yaml:"ledger"`
	Metrics       struct {
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Risk.MinRiskPct > c.Risk.MaxRiskPct {
		return fmt.Errorf("risk.min_risk_pct %.2f exceeds risk.max_risk_pct %.2f", c.Risk.MinRiskPct, c.Risk.MaxRiskPct)
	}
	if c.Risk.DefaultRiskPct < c.Risk.MinRiskPct || c.Risk.DefaultRiskPct > c.Risk.MaxRiskPct {
		return fmt.Errorf("risk.default_risk_pct %.2f outside [%.2f, %.2f]", c.Risk.DefaultRiskPct, c.Risk.MinRiskPct, c.Risk.MaxRiskPct)
	}
	if _, err := time.LoadLocation(c.TradingWindow.Timezone); err != nil {
		return fmt.Errorf("invalid trading_window.timezone '%s': %w", c.TradingWindow.Timezone, err)
	}
	if !c.Ledger.InMemory && c.Ledger.Path == "" {
		return errors.New("ledger.path cannot be empty unless ledger.in_memory is set")
	}

	seen := make(map[string]bool, len(c.Universe))
	for _, s := range c.Universe {
		if s.Symbol == "" {
			return errors.New("universe entry with empty symbol")
		}
		if seen[s.Symbol] {
			return fmt.Errorf("duplicate universe symbol '%s'", s.Symbol)
		}
		seen[s.Symbol] = true
	}

	ids := make(map[string]bool, len(c.Accounts))
	for _, a := range c.Accounts {
		if ids[a.ID] {
			return fmt.Errorf("duplicate account id '%s'", a.ID)
		}
		ids[a.ID] = true
		if a.Provider != "NOOP" && a.Model == "" {
			return fmt.Errorf("account '%s': model is required for provider %s", a.ID, a.Provider)
		}
	}
	return nil
}

// Location returns the trading window timezone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TradingWindow.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Symbols returns the universe symbols in configured order.
func (c *Config) Symbols() []string {
	out := make([]string, 0, len(c.Universe))
	for _, s := range c.Universe {
		out = append(out, s.Symbol)
	}
	return out
}

func (c *Config) applyDefaults() {
	if c.PollSeconds == 0 {
		c.PollSeconds = 180
	}
	if c.FeeRate == 0 {
		c.FeeRate = 0.001
	}
	if c.EODTime == "" {
		c.EODTime = "15:10:00"
	}
	if c.TradingWindow.Start == "" {
		c.TradingWindow.Start = "09:30:00"
	}
	if c.TradingWindow.End == "" {
		c.TradingWindow.End = "15:00:00"
	}
	if c.TradingWindow.Timezone == "" {
		c.TradingWindow.Timezone = "Asia/Shanghai"
	}
	c.MarketData.Source = strings.ToUpper(c.MarketData.Source)
	if c.MarketData.Source == "" {
		c.MarketData.Source = "SINA"
	}
	if c.MarketData.CacheSeconds == 0 {
		c.MarketData.CacheSeconds = 5
	}
	if c.MarketData.TimeoutSeconds == 0 {
		c.MarketData.TimeoutSeconds = 5
	}
	if c.MarketData.HistoryDays == 0 {
		c.MarketData.HistoryDays = 60
	}
	if c.MarketData.RequestsPerSecond == 0 {
		c.MarketData.RequestsPerSecond = 5
	}
	if c.Risk.MaxPositions == 0 {
		c.Risk.MaxPositions = 3
	}
	if c.Risk.MinRiskPct == 0 {
		c.Risk.MinRiskPct = 1
	}
	if c.Risk.MaxRiskPct == 0 {
		c.Risk.MaxRiskPct = 5
	}
	if c.Risk.DefaultRiskPct == 0 {
		c.Risk.DefaultRiskPct = 3
	}
	if c.Risk.MaxLeverage == 0 {
		c.Risk.MaxLeverage = 1
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2000
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 60
	}
	if c.Ledger.Path == "" && !c.Ledger.InMemory {
		c.Ledger.Path = "data/ledger"
	}
	for i := range c.Accounts {
		c.Accounts[i].Provider = strings.ToUpper(c.Accounts[i].Provider)
		if c.Accounts[i].Name == "" {
			c.Accounts[i].Name = c.Accounts[i].ID
		}
	}
	for i := range c.Universe {
		if c.Universe[i].APISymbol == "" {
			c.Universe[i].APISymbol = c.Universe[i].Symbol
		}
	}
}

// Parse decodes YAML, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
