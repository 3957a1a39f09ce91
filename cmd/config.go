package main

import (
	"fmt"
	"time"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=info"`
	Host     string `env:"HOST,default=localhost"`
	Port     int    `env:"PORT,default=8080"`

	// StoreBackend selects the room store: "badger" (embedded, default) or
	// "mongo". Users always live in badger.
	StoreBackend   string `env:"STORE_BACKEND,default=badger"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	MongoURI       string `env:"MONGO_URI"`
	MongoDatabase  string `env:"MONGO_DATABASE,default=chathub"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`

	BufferSize           int  `env:"BUFFER_SIZE,default=1024"`
	ConnectionBufferSize int  `env:"CONNECTION_BUFFER_SIZE,default=256"`
	LimitMessages        *int `env:"LIMIT_MESSAGES"`

	// DebugPort exposes the badger inspector when non zero. Local use only.
	DebugPort      int           `env:"DEBUG_PORT,default=0"`
	MetricInterval time.Duration `env:"METRIC_INTERVAL,default=1s"`

	SuppressWindow    time.Duration `env:"SUPPRESS_WINDOW,default=2s"`
	PurgeHorizon      time.Duration `env:"PURGE_HORIZON,default=5s"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	CensoredWords   []string `env:"CENSORED_WORDS"`
	CharReplacement string   `env:"CHARACTER_REPLACEMENT,default=*"`
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
