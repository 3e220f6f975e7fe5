package main

import (
	"log/slog"

	"github.com/flowmetrics/flowcap/cmd/flowcap/cmd"
	"github.com/flowmetrics/flowcap/pkg/logging"
)

func main() {
	err := cmd.Execute()
	if err != nil {
		logger, _ := logging.New(slog.LevelInfo, "logfmt")
		logger.Fatal("flowcap terminated with an error", slog.Any("error", err))
	}
}
