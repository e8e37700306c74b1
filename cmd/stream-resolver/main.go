// Package main is the entry point for StreamResolver.
package main

import (
	"log"
	"os"

	"stream-resolver-go/internal/app"
)

func main() {
	application, err := app.New()
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Printf("server error: %v", err)
		os.Exit(1)
	}
}
