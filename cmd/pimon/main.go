package main

import (
	"log"

	"github.com/MrSnakeDoc/pimon/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ pimon failed to start: %v", err)
	}
}
