// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the archiver configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file (strict,
// unknown keys are rejected), XG2G_ARCHIVE_* environment variables. The
// result is validated as a whole; a config that fails validation is never
// applied, neither at startup nor on reload.
package config
