package main

import (
	"log"

	"github.com/calebres/aidesk"
	"github.com/calebres/aidesk/server"
)

func main() {
	cfg, err := aidesk.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	wb, err := aidesk.NewWorkbench(cfg)
	if err != nil {
		log.Fatalf("Failed to assemble workbench: %v", err)
	}

	srv := server.New(wb)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server exited: %v", err)
	}
}
