// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves docqa settings.
//
// # Key Types
//
//   - Config: all settings, one struct per TOML table
//   - ValidateErrors: every field that failed validation
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DOCQA_*), including those set by ./.env
//   - ~/.docqa/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := backend.NewClient(cfg.ClientConfig(), logger)
package config
