package main

import (
	"log"

	"cardscan-backend/internal/bootstrap"
	"cardscan-backend/internal/shared/config"
	"cardscan-backend/internal/shared/server"
)

func main() {
	cfg := config.Load()
	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	addr := server.Addr(cfg.Port)
	log.Printf("Starting API server on %s (store=%s provider=%s)", addr, app.Config.ObjectStoreType, app.Config.LLMProvider)

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
