package app

import (
	"strings"
	"time"

	"elesrank/internal/config"
	"elesrank/internal/observability/debugsrv"
	"elesrank/internal/ranking"
	"elesrank/internal/runtime/supervisor"
	"elesrank/internal/view"
	logx "elesrank/pkg/logx"
)

// ---- Config ----

type Config = config.Config

type ConfigManager = config.ConfigManager

var NewConfigManager = config.NewConfigManager

var SummarizeConfigChange = config.SummarizeConfigChange

// ---- Runtime ----

type Supervisor = supervisor.Supervisor

var NewSupervisor = supervisor.New

const defaultWatchDebounce = 250 * time.Millisecond

func mapLogConfig(cfg *Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Alert: logx.AlertConfig{
			Enabled:    cfg.Logging.Alert.Enabled,
			MinLevel:   cfg.Logging.Alert.MinLevel,
			RatePerSec: cfg.Logging.Alert.RatePerSec,
		},
	}
}

func mapDelays(cfg *Config) (view.Delays, error) {
	def := view.DefaultDelays()
	var (
		d   view.Delays
		err error
	)
	if d.Refresh, err = config.ParseDurationOrDefault("delays.refresh", cfg.Delays.Refresh, def.Refresh); err != nil {
		return d, err
	}
	if d.SearchRefresh, err = config.ParseDurationOrDefault("delays.search_refresh", cfg.Delays.SearchRefresh, def.SearchRefresh); err != nil {
		return d, err
	}
	if d.StateSync, err = config.ParseDurationOrDefault("delays.state_sync", cfg.Delays.StateSync, def.StateSync); err != nil {
		return d, err
	}
	if d.ReadyPoll, err = config.ParseDurationOrDefault("delays.ready_poll", cfg.Delays.ReadyPoll, def.ReadyPoll); err != nil {
		return d, err
	}
	if d.ReadyPoll <= 0 {
		d.ReadyPoll = def.ReadyPoll
	}
	return d, nil
}

// mapInitialState builds the starting table state; an unset order_by keeps
// the default ranking and "none" disables sorting.
func mapInitialState(cfg *Config) (view.State, error) {
	st := view.DefaultState()
	var err error
	if st.Period, err = ranking.ParsePeriod(cfg.View.Period); err != nil {
		return st, err
	}
	if st.UnitTypes, err = ranking.ParseUnitTypeFilter(cfg.View.UnitType); err != nil {
		return st, err
	}
	st.Search = cfg.View.Search
	switch ob := strings.TrimSpace(cfg.View.OrderBy); {
	case ob == "":
	case strings.EqualFold(ob, "none"):
		st.OrderBy = ranking.SortSpec{}
	default:
		st.OrderBy = ranking.ParseSort(ob)
	}
	return st, nil
}

func mapWatchDebounce(cfg *Config) (time.Duration, error) {
	return config.ParseDurationOrDefault("data.watch_debounce", cfg.Data.WatchDebounce, defaultWatchDebounce)
}

func mapDebugConfig(cfg *Config) debugsrv.Config {
	return debugsrv.Config{
		Enabled:              cfg.Debug.Enabled,
		Addr:                 cfg.Debug.Addr,
		Token:                cfg.Debug.Token,
		AllowInsecure:        cfg.Debug.AllowInsecure,
		BlockProfileRate:     cfg.Debug.BlockProfileRate,
		MutexProfileFraction: cfg.Debug.MutexProfileFraction,
	}
}
