// Package cmd parses configuration to run the application.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"huddle/huddle"
	"huddle/metric"
	"huddle/signal"
)

// Run starts the application.
func Run() {
	config, err := SetupConfig(os.Stdout, os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("failed to set up config")
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	if config.Signal.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	h := huddle.New(config)
	if err := h.Start(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// SetupConfig sets up and returns the configuration. Values come from the
// optional config file and environment first, then command line flags.
func SetupConfig(w io.Writer, args []string) (huddle.Config, error) {
	config, err := Parse(w, args)
	if err != nil {
		return config, err
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// loadDefaults reads defaults from the optional huddle.yaml config file
// and HUDDLE_* environment variables.
func loadDefaults() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigName("huddle")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("huddle")
	v.AutomaticEnv()

	v.SetDefault("port", signal.DefaultPort)
	v.SetDefault("debug", false)
	v.SetDefault("cert_file", "")
	v.SetDefault("key_file", "")
	v.SetDefault("max_session_size", 0)
	v.SetDefault("metrics_port", metric.DefaultMetricsPort)
	v.SetDefault("metrics_path", metric.DefaultMetricsPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Parse parses the command line arguments on top of the loaded defaults.
func Parse(w io.Writer, args []string) (huddle.Config, error) {
	v, err := loadDefaults()
	if err != nil {
		return huddle.Config{}, err
	}

	con := huddle.Config{}
	fs := flag.NewFlagSet("huddle", flag.ContinueOnError)
	fs.SetOutput(w)
	fs.IntVar(&con.Signal.Port, "port", v.GetInt("port"), "listening port")
	fs.BoolVar(&con.Signal.Debug, "debug", v.GetBool("debug"), "debug mode")
	fs.StringVar(&con.Signal.KeyFile, "key", v.GetString("key_file"), "key file path")
	fs.StringVar(&con.Signal.CertFile, "cert", v.GetString("cert_file"), "cert file path")
	fs.IntVar(&con.Coordinator.MaxSessionSize, "max-session-size", v.GetInt("max_session_size"), "participant limit per session, 0 for unlimited")
	fs.IntVar(&con.Metrics.Port, "metrics-port", v.GetInt("metrics_port"), "metrics server port")
	fs.StringVar(&con.Metrics.Path, "metrics-path", v.GetString("metrics_path"), "metrics endpoint path")

	if err := fs.Parse(args); err != nil {
		return huddle.Config{}, fmt.Errorf("failed to parse args: %w", err)
	}

	if fs.NArg() != 0 {
		return huddle.Config{}, errors.New("some args are not parsed")
	}

	return con, nil
}
