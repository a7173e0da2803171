// Command memoryengine is the CLI front end for the memory engine: bank
// management, retain/recall/consolidate operations, and async job
// inspection, grounded on the teacher's cobra command layout.
package main

import (
	"fmt"

	"github.com/memoryengine/memoryengine/internal/app"
	"github.com/memoryengine/memoryengine/pkg/config"
)

func newApp() (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureConfigDir(); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	return app.New(cfg)
}

func main() {
	Execute()
}
