package config

// Config is the on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "250ms", "10s").
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Data    DataConfig    `json:"data"`
	View    ViewConfig    `json:"view"`
	Delays  DelaysConfig  `json:"delays,omitempty"`
	Debug   DebugConfig   `json:"debug,omitempty"`
}

type LoggingConfig struct {
	Level   string       `json:"level" validate:"omitempty,oneof=trace debug info warn warning error TRACE DEBUG INFO WARN WARNING ERROR"`
	Console bool         `json:"console"`
	File    LoggingFile  `json:"file"`
	Alert   LoggingAlert `json:"alert"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingAlert controls the compact stderr sink for warnings.
type LoggingAlert struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec" validate:"gte=0"`
}

// DataConfig points at the unit directory document.
//
// Example:
//
//	"data": { "path": "./directory.json", "watch": true, "reload": "@every 10m" }
type DataConfig struct {
	Path string `json:"path" validate:"required,notblank"`

	// Watch reloads the file on change (fsnotify).
	Watch         bool   `json:"watch,omitempty"`
	WatchDebounce string `json:"watch_debounce,omitempty" validate:"duration"` // default 250ms

	// Reload is an optional schedule (cron, "@every 10m", "10m" or "HH:MM")
	// re-reading the file even when no change event arrives.
	Reload   string `json:"reload,omitempty"`
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"` // IANA TZ for cron schedules
}

// ViewConfig is the initial table state.
type ViewConfig struct {
	Period   string `json:"period,omitempty" validate:"period"`       // default all_time
	UnitType string `json:"unit_type,omitempty" validate:"unittype"` // default all_types
	OrderBy  string `json:"order_by,omitempty"`                      // "<+|-><field>" or "none", default -broken_time_percentage
	Search   string `json:"search,omitempty"`
	PageSize int    `json:"page_size,omitempty" validate:"gte=0"` // default 20
}

// DelaysConfig tunes the debounce delays of the table controller.
//
// Defaults:
//   - refresh: "0s" (period / unit type changes)
//   - search_refresh: "400ms" (not postponed while typing)
//   - state_sync: "500ms" (postponed while typing)
//   - ready_poll: "100ms" (retry interval until the directory is loaded)
type DelaysConfig struct {
	Refresh       string `json:"refresh,omitempty" validate:"duration"`
	SearchRefresh string `json:"search_refresh,omitempty" validate:"duration"`
	StateSync     string `json:"state_sync,omitempty" validate:"duration"`
	ReadyPoll     string `json:"ready_poll,omitempty" validate:"duration"`
}

// DebugConfig controls the optional debug HTTP server (pprof, health and the
// current view as JSON). Non-loopback binds need a token or allow_insecure.
type DebugConfig struct {
	Enabled       bool   `json:"enabled,omitempty"`
	Addr          string `json:"addr,omitempty" validate:"omitempty,hostname_port"` // default 127.0.0.1:6060
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`

	BlockProfileRate     int `json:"block_profile_rate,omitempty" validate:"gte=0"`
	MutexProfileFraction int `json:"mutex_profile_fraction,omitempty" validate:"gte=0"`
}
