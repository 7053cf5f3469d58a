// internal/logger/logger.go
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Development gets a human readable
// console writer, every other environment gets JSON lines.
func Init(serviceName, env string) {
	zerolog.TimeFieldFormat = time.RFC3339

	if env == "development" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("service", serviceName).
			Logger()
		return
	}

	log.Logger = zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}
