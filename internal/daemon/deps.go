// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"io"

	"github.com/ManuGH/xg2g-archive/internal/archive"
	"github.com/ManuGH/xg2g-archive/internal/catalog"
	"github.com/ManuGH/xg2g-archive/internal/config"
	"github.com/ManuGH/xg2g-archive/internal/feeder"
	"github.com/ManuGH/xg2g-archive/internal/health"
)

// Deps are the collaborators an App drives.
type Deps struct {
	Config  config.AppConfig
	Holder  *config.Holder // optional; enables reload
	Input   io.Reader
	Sink    *archive.Sink
	Catalog catalog.Store
	Health  *health.Manager // optional
	// ArchivePath is recorded in the catalog.
	ArchivePath string
}

// Validate checks that required dependencies are present.
func (d Deps) Validate() error {
	if d.Sink == nil {
		return ErrMissingSink
	}
	if d.Input == nil {
		return ErrMissingInput
	}
	if d.Catalog == nil {
		return ErrMissingCatalog
	}
	return nil
}

func feederConfig(cfg config.FeederConfig) feeder.Config {
	return feeder.Config{
		ChunkSize:      cfg.ChunkSize,
		SampleDuration: cfg.SampleDuration,
		RatePerSecond:  cfg.RatePerSecond,
		MarkerEvery:    cfg.MarkerEvery,
	}
}
