package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// mustBindPFlag attempts to bind a specific key to a pflag (as used by cobra)
// and panics if the binding fails with a non-nil error.
func mustBindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic("failed to bind pflag: " + err.Error())
	}
}

func mustBindEnv(input ...string) {
	if err := viper.BindEnv(input...); err != nil {
		panic("failed to bind env key: " + err.Error())
	}
}

// bindRunFlags binds the cobra cmd flags to the equivalent config value being
// managed by viper. This bridges the config between cobra flags and viper flags.
func bindRunFlags(command *cobra.Command) {
	defaultConfig := DefaultConfig()
	flags := command.Flags()

	flags.String("http-addr", defaultConfig.HTTP.Addr, "the host:port address to serve the HTTP server on")
	mustBindPFlag("http.addr", flags.Lookup("http-addr"))
	mustBindEnv("http.addr", "BOOKMARKD_HTTP_ADDR")

	flags.StringSlice("http-cors-allowed-origins", defaultConfig.HTTP.CORSAllowedOrigins, "specifies the CORS allowed origins")
	mustBindPFlag("http.corsAllowedOrigins", flags.Lookup("http-cors-allowed-origins"))
	mustBindEnv("http.corsAllowedOrigins", "BOOKMARKD_HTTP_CORS_ALLOWED_ORIGINS", "BOOKMARKD_HTTP_CORSALLOWEDORIGINS")

	flags.StringSlice("http-cors-allowed-headers", defaultConfig.HTTP.CORSAllowedHeaders, "specifies the CORS allowed headers")
	mustBindPFlag("http.corsAllowedHeaders", flags.Lookup("http-cors-allowed-headers"))
	mustBindEnv("http.corsAllowedHeaders", "BOOKMARKD_HTTP_CORS_ALLOWED_HEADERS", "BOOKMARKD_HTTP_CORSALLOWEDHEADERS")

	flags.String(datastoreEngineFlag, defaultConfig.Datastore.Engine, "the datastore engine that will be used for persistence")
	mustBindPFlag(datastoreEngineConf, flags.Lookup(datastoreEngineFlag))
	mustBindEnv(datastoreEngineConf, "BOOKMARKD_DATASTORE_ENGINE")

	flags.String(datastoreURIFlag, defaultConfig.Datastore.URI, "the connection uri to use to connect to the datastore (for any engine other than 'memory')")
	mustBindPFlag(datastoreURIConf, flags.Lookup(datastoreURIFlag))
	mustBindEnv(datastoreURIConf, "BOOKMARKD_DATASTORE_URI")

	flags.Int("datastore-max-open-conns", defaultConfig.Datastore.MaxOpenConns, "the maximum number of open connections to the datastore")
	mustBindPFlag("datastore.maxOpenConns", flags.Lookup("datastore-max-open-conns"))
	mustBindEnv("datastore.maxOpenConns", "BOOKMARKD_DATASTORE_MAX_OPEN_CONNS", "BOOKMARKD_DATASTORE_MAXOPENCONNS")

	flags.Int("datastore-max-idle-conns", defaultConfig.Datastore.MaxIdleConns, "the maximum number of connections to the datastore in the idle connection pool")
	mustBindPFlag("datastore.maxIdleConns", flags.Lookup("datastore-max-idle-conns"))
	mustBindEnv("datastore.maxIdleConns", "BOOKMARKD_DATASTORE_MAX_IDLE_CONNS", "BOOKMARKD_DATASTORE_MAXIDLECONNS")

	flags.Duration("datastore-conn-max-idle-time", defaultConfig.Datastore.ConnMaxIdleTime, "the maximum amount of time a connection to the datastore may be idle")
	mustBindPFlag("datastore.connMaxIdleTime", flags.Lookup("datastore-conn-max-idle-time"))
	mustBindEnv("datastore.connMaxIdleTime", "BOOKMARKD_DATASTORE_CONN_MAX_IDLE_TIME", "BOOKMARKD_DATASTORE_CONNMAXIDLETIME")

	flags.Duration("datastore-conn-max-lifetime", defaultConfig.Datastore.ConnMaxLifetime, "the maximum amount of time a connection to the datastore may be reused")
	mustBindPFlag("datastore.connMaxLifetime", flags.Lookup("datastore-conn-max-lifetime"))
	mustBindEnv("datastore.connMaxLifetime", "BOOKMARKD_DATASTORE_CONN_MAX_LIFETIME", "BOOKMARKD_DATASTORE_CONNMAXLIFETIME")

	flags.String("deferred-mode", defaultConfig.Deferred.Mode, "how deferred side effects are executed ('async', 'sync' or 'disabled')")
	mustBindPFlag("deferred.mode", flags.Lookup("deferred-mode"))
	mustBindEnv("deferred.mode", "BOOKMARKD_DEFERRED_MODE")

	flags.Int("deferred-workers", defaultConfig.Deferred.Workers, "the number of workers draining the deferred task queue in async mode")
	mustBindPFlag("deferred.workers", flags.Lookup("deferred-workers"))
	mustBindEnv("deferred.workers", "BOOKMARKD_DEFERRED_WORKERS")

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	mustBindPFlag("log.format", flags.Lookup("log-format"))
	mustBindEnv("log.format", "BOOKMARKD_LOG_FORMAT")

	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	mustBindPFlag("log.level", flags.Lookup("log-level"))
	mustBindEnv("log.level", "BOOKMARKD_LOG_LEVEL")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable the Prometheus metrics endpoint")
	mustBindPFlag("metrics.enabled", flags.Lookup("metrics-enabled"))
	mustBindEnv("metrics.enabled", "BOOKMARKD_METRICS_ENABLED")

	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the metrics server on")
	mustBindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	mustBindEnv("metrics.addr", "BOOKMARKD_METRICS_ADDR")
}
