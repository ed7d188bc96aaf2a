package main

import (
	"context"
	"log"
	"os"

	"saga-orchestrator/internal/admin"
	"saga-orchestrator/internal/components"
)

func main() {
	container, err := components.New()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	admin.Run(context.Background(), container, os.Stdin, os.Stdout)
}
