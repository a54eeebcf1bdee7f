package main

import (
	"github.com/OFFIS-RIT/listenkg/internal/config"
	"github.com/OFFIS-RIT/listenkg/internal/server"
	"github.com/OFFIS-RIT/listenkg/pkg/logger"
	"github.com/OFFIS-RIT/listenkg/pkg/logger/console"
)

func main() {
	cfg := config.Load()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
	})
	logger.Init(consoleLogger)

	server.Init(cfg)
}
