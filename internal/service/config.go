package service

import (
	"os"
	"time"
)

// Config captures server-level configuration.
type Config struct {
	Addr            string
	Actor           string
	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("MISMOD_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	actor := os.Getenv("MISMOD_ACTOR")
	if actor == "" {
		actor = "mismod"
	}
	return Config{
		Addr:            addr,
		Actor:           actor,
		ShutdownTimeout: 10 * time.Second,
	}
}
