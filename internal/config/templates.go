package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# F&O Signal Engine Configuration

[engine]
# Operating mode: "INTRADAY" or "POSITIONAL"
mode = "INTRADAY"
# Lowest priority that produces a notification: LOW, MEDIUM, HIGH, CRITICAL
min_priority = "LOW"
# Instruments scanned in parallel
workers = 4

[engine.history]
# Snapshots kept for the intraday trend detectors
intraday_capacity = 15
# Positional history window and row cap
positional_window = "120h"
positional_max_rows = 200

[logging]
level = "info"
console = true
file = true
max_size = 100
max_backups = 7
max_age = 30

[store]
# SQLite database holding bars, chain snapshots and the signal journal
# db_path = "~/.config/fno-signals/signals.db"

[metrics]
enabled = false
listen = ":9108"

[watch]
# Cron schedule with seconds
schedule = "0 */5 * * * *"
# Skip runs outside NSE market hours
market_hours_only = true
# Symbols analysed with index profiles
indices = ["NIFTY", "BANKNIFTY", "FINNIFTY", "MIDCPNIFTY"]

[notify]
# POST every notifying cycle to a webhook as JSON
enabled = false
# Defaults to engine.min_priority
# min_priority = "HIGH"

[notify.webhook]
# url = "https://hooks.example.com/fno"
timeout = "10s"

[scoring]
default_weight = 1
# Added per repeated occurrence of the same type
occurrence_bonus = 0.3
# Total score below this never notifies
min_notify_score = 4.0
confirmation_bonus = 1.5
all_bonus = 1.2
mixed_bonus = 1.0
neutral_exclusions = ["oi_range", "pcr_divergence"]

[scoring.tiers]
low = 3.0
medium = 6.0
high = 10.0
critical = 15.0

# Per-type weights. Unlisted types use default_weight.
[scoring.weights]
oi_support_resistance = 3
oi_heavy_writing = 3
oi_wall = 3
futures_buildup = 3
`

const thresholdsTemplate = `# F&O Signal Engine Detector Thresholds
#
# Sections are [family.mode.class]; family is technical, oichain, pcr or
# futures, mode is intraday or positional, class is stock or index. Keys
# left out keep their built-in value. Run "signals profiles" to see them.

# [oichain.intraday.index]
# dominance_factor = 2.5
# wall_sigma = 2.5

# [pcr.positional.stock]
# extreme_low = 0.45
# extreme_high = 1.6

# [technical.intraday.stock]
# rsi_oversold = 25
# rsi_overbought = 75
`

func writeTemplate(configDir, name, body string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}

func createTemplateConfig(configDir, name string) error {
	return writeTemplate(configDir, name, configTemplate)
}

func createTemplateThresholds(configDir string) error {
	return writeTemplate(configDir, "thresholds", thresholdsTemplate)
}
