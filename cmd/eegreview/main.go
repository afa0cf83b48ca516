// Command eegreview serves converted recordings to the operator for visual
// inspection and manual annotation between the findings and apply
// preprocessing passes.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/JVHannila/MoBI-project/internal/config"
	"github.com/JVHannila/MoBI-project/internal/logger"
	"github.com/JVHannila/MoBI-project/internal/registry"
	"github.com/JVHannila/MoBI-project/internal/review"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	port := flag.Int("port", cfg.ReviewPort, "port to listen on")
	flag.Parse()

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		log.Fatal("opening registry", zap.Error(err))
	}
	defer reg.Close()

	srv := review.NewServer(cfg.BIDSRoot, cfg.DerivativesDir, reg, log)
	if err := srv.Start(*port); err != nil {
		log.Fatal("review server stopped", zap.Error(err))
	}
}
