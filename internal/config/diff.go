package config

import (
	"strings"

	logx "elesrank/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and
// structured attrs for logging.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.alert_enabled", newCfg.Logging.Alert.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Data.Path) != strings.TrimSpace(newCfg.Data.Path) ||
		oldCfg.Data.Watch != newCfg.Data.Watch ||
		strings.TrimSpace(oldCfg.Data.WatchDebounce) != strings.TrimSpace(newCfg.Data.WatchDebounce) ||
		strings.TrimSpace(oldCfg.Data.Reload) != strings.TrimSpace(newCfg.Data.Reload) ||
		strings.TrimSpace(oldCfg.Data.Timezone) != strings.TrimSpace(newCfg.Data.Timezone) {
		changed = append(changed, "data")
		attrs = append(attrs,
			logx.String("data.path", newCfg.Data.Path),
			logx.Bool("data.watch", newCfg.Data.Watch),
			logx.String("data.reload", newCfg.Data.Reload),
		)
	}

	if oldCfg.View != newCfg.View {
		changed = append(changed, "view")
		attrs = append(attrs,
			logx.String("view.period", newCfg.View.Period),
			logx.String("view.unit_type", newCfg.View.UnitType),
			logx.String("view.order_by", newCfg.View.OrderBy),
			logx.Int("view.page_size", newCfg.View.PageSize),
		)
	}

	if oldCfg.Delays != newCfg.Delays {
		changed = append(changed, "delays")
		attrs = append(attrs,
			logx.String("delays.refresh", newCfg.Delays.Refresh),
			logx.String("delays.search_refresh", newCfg.Delays.SearchRefresh),
			logx.String("delays.state_sync", newCfg.Delays.StateSync),
			logx.String("delays.ready_poll", newCfg.Delays.ReadyPoll),
		)
	}

	if oldCfg.Debug != newCfg.Debug {
		changed = append(changed, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", newCfg.Debug.Addr),
			logx.Bool("debug.token_set", newCfg.Debug.Token != ""),
		)
	}

	return changed, attrs
}
