// Package strategy resolves configured strategy names into ready strategies.
package strategy

import (
	"fmt"
	"sort"
	"strings"

	"tradeEngine/internal/ports"
	"tradeEngine/internal/strategy/strategies"
)

// Config carries the enabled strategy names and their parameters.
type Config struct {
	Enabled     []string
	RSI         strategies.RSIConfig
	MACD        strategies.MACDConfig
	Bollinger   strategies.BollingerConfig
	MACrossover strategies.MACrossoverConfig
}

// DefaultConfig enables every registered strategy with default parameters.
func DefaultConfig() Config {
	return Config{
		Enabled:     Names(),
		RSI:         strategies.DefaultRSIConfig(),
		MACD:        strategies.DefaultMACDConfig(),
		Bollinger:   strategies.DefaultBollingerConfig(),
		MACrossover: strategies.DefaultMACrossoverConfig(),
	}
}

// Factory builds one strategy from cfg.
type Factory func(cfg Config) (ports.Strategy, error)

var registry = map[string]Factory{
	"rsi": func(cfg Config) (ports.Strategy, error) {
		return strategies.NewRSIStrategy(cfg.RSI)
	},
	"macd": func(cfg Config) (ports.Strategy, error) {
		return strategies.NewMACDStrategy(cfg.MACD)
	},
	"bollinger": func(cfg Config) (ports.Strategy, error) {
		return strategies.NewBollingerStrategy(cfg.Bollinger)
	},
	"ma_crossover": func(cfg Config) (ports.Strategy, error) {
		return strategies.NewMACrossover(cfg.MACrossover)
	},
}

// Names lists the registered strategy names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves cfg.Enabled in order. Unknown or duplicate names and
// invalid parameters are errors.
func Build(cfg Config) ([]ports.Strategy, error) {
	if len(cfg.Enabled) == 0 {
		return nil, fmt.Errorf("at least one strategy must be enabled")
	}
	seen := make(map[string]bool, len(cfg.Enabled))
	out := make([]ports.Strategy, 0, len(cfg.Enabled))
	for _, raw := range cfg.Enabled {
		name := strings.ToLower(strings.TrimSpace(raw))
		factory, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q (known: %s)", raw, strings.Join(Names(), ", "))
		}
		if seen[name] {
			return nil, fmt.Errorf("strategy %q enabled twice", name)
		}
		seen[name] = true
		s, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("strategy %q: %w", name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// FromParams builds the named strategy with defaults overlaid by params.
// Keys are the parameter names listed by ParamNames.
func FromParams(name string, params map[string]float64) (ports.Strategy, error) {
	cfg := DefaultConfig()
	cfg.Enabled = []string{name}
	for key, v := range params {
		if err := setParam(&cfg, name, key, v); err != nil {
			return nil, err
		}
	}
	built, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	return built[0], nil
}

// ParamNames returns the tunable parameters of a strategy.
func ParamNames(name string) []string {
	switch name {
	case "rsi":
		return []string{"period", "oversold", "overbought"}
	case "macd":
		return []string{"fast", "slow", "signal"}
	case "bollinger":
		return []string{"period", "stddev"}
	case "ma_crossover":
		return []string{"fast", "slow"}
	}
	return nil
}

func setParam(cfg *Config, name, key string, v float64) error {
	switch name + "." + key {
	case "rsi.period":
		cfg.RSI.Period = int(v)
	case "rsi.oversold":
		cfg.RSI.Oversold = v
	case "rsi.overbought":
		cfg.RSI.Overbought = v
	case "macd.fast":
		cfg.MACD.FastPeriod = int(v)
	case "macd.slow":
		cfg.MACD.SlowPeriod = int(v)
	case "macd.signal":
		cfg.MACD.SignalPeriod = int(v)
	case "bollinger.period":
		cfg.Bollinger.Period = int(v)
	case "bollinger.stddev":
		cfg.Bollinger.StdDev = v
	case "ma_crossover.fast":
		cfg.MACrossover.FastPeriod = int(v)
	case "ma_crossover.slow":
		cfg.MACrossover.SlowPeriod = int(v)
	default:
		return fmt.Errorf("unknown parameter %q for strategy %q", key, name)
	}
	return nil
}
