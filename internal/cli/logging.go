package cli

import (
	"os"
	"strings"

	"edurumble-service/internal/config"
	log "github.com/sirupsen/logrus"
)

func configureLogging(cfg config.Config) {
	log.SetOutput(os.Stdout)
	if strings.EqualFold(cfg.Log.Format, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.WithField("level", cfg.Log.Level).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
