package main

import (
	"log"

	"saga-orchestrator/internal/components"
	"saga-orchestrator/internal/logging"
)

func main() {
	container, err := components.New()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	logging.Info("Saga orchestrator initialized successfully", map[string]interface{}{
		"version":     "1.0.0",
		"environment": container.GetConfig().Environment,
		"port":        container.GetConfig().Server.Port,
	})

	if err := container.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
