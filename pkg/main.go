package main

import (
	"os"
	"os/signal"
	"syscall"

	pkg "github.com/driveline/callbridge/pkg/internal"
	"github.com/driveline/callbridge/pkg/internal/database"
	web "github.com/driveline/callbridge/pkg/internal/http"
	"github.com/driveline/callbridge/pkg/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
}

func main() {
	// Configure settings
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.SetConfigName("settings")
	viper.SetConfigType("toml")
	viper.SetDefault("bind", "0.0.0.0:8445")
	viper.SetDefault("calling.token_duration", 3600)
	viper.SetDefault("audio.sample_rate", 16000)
	viper.SetDefault("audio.channels", 1)
	viper.SetDefault("agent.endpoint", "http://localhost:8000")
	viper.SetDefault("agent.autojoin", true)

	// Load settings
	if err := viper.ReadInConfig(); err != nil {
		log.Panic().Err(err).Msg("An error occurred when loading settings.")
	}

	// Missing platform credentials are a configuration error, never a degraded mode.
	if viper.GetString("calling.api_key") == "" || viper.GetString("calling.api_secret") == "" {
		log.Fatal().Msg("Calling api_key and api_secret are required to start.")
	}

	// Connect to database
	if len(viper.GetString("database.dsn")) == 0 {
		log.Warn().Msg("No database configured, call sessions will not survive a restart.")
	} else if err := database.NewSource(); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when connect to database.")
	} else if err := database.RunMigration(database.C); err != nil {
		log.Fatal().Err(err).Msg("An error occurred when running database auto migration.")
	}

	// Connect to the media platform and wire the orchestration layer
	services.SetupLiveKit()
	services.SetupServices()

	// Server
	web.NewServer()
	go web.Listen()

	// Configure timed tasks
	quartz := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&log.Logger)))
	quartz.AddFunc("@every 60m", services.DoAutoCallCleanup)
	quartz.Start()

	log.Info().Msgf("Callbridge v%s is started...", pkg.AppVersion)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msgf("Callbridge v%s is quitting...", pkg.AppVersion)

	quartz.Stop()
}
