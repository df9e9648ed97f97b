package config

import "flag"

// LoadFromFlags defines the standard command-line flags, parses them, and
// loads the configuration. Only one caller per process can use this.
func LoadFromFlags() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for the catalog database and covers")
	roots := flag.String("roots", "", "Comma-separated library roots as type:path (types: root, author, single-folder, single-file)")
	scanWorkers := flag.String("scan-workers", "", "Analyzer worker count (default: one per CPU)")
	watchEnabled := flag.String("watch", "", "Watch library roots for changes (default: true)")
	watchSettleDelay := flag.String("watch-settle-delay", "", "Quiet period before a watcher-triggered rescan (default: 2s)")
	watchMinRescan := flag.String("watch-min-rescan-interval", "", "Minimum interval between watcher-triggered rescans (default: 30s)")
	envFile := flag.String("env-file", ".env", "Path to .env file")
	flag.Parse()

	return Load(Values{
		Environment:            *env,
		LogLevel:               *logLevel,
		DataPath:               *dataPath,
		Roots:                  *roots,
		ScanWorkers:            *scanWorkers,
		WatchEnabled:           *watchEnabled,
		WatchSettleDelay:       *watchSettleDelay,
		WatchMinRescanInterval: *watchMinRescan,
		EnvFile:                *envFile,
	})
}
