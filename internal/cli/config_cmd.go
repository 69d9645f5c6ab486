// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/docqa-tui/internal/config"
)

// HandleConfig prints the effective configuration.
//
//	docqa config [show|get KEY|path|keys]
func HandleConfig(args Args) error {
	switch sub := args.Sub(); sub {
	case "path":
		return configPath(args)
	case "keys":
		return configKeys(args)
	case "", "show", "get":
	default:
		return NewValidationErrorWithExample("config subcommand", sub, "unknown subcommand", "docqa config show")
	}

	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	if args.Sub() == "get" {
		return configGet(cfg, args)
	}

	if args.JSON {
		return NewJSONResponse("config show", cfg).Print()
	}
	fmt.Print(cfg.String())
	return nil
}

func configPath(args Args) error {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return &ConfigLoadError{Err: err}
		}
		path = p
	}
	if args.JSON {
		return NewJSONResponse("config path", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}

func configKeys(args Args) error {
	keys := config.Keys()
	if args.JSON {
		return NewJSONResponse("config keys", keys).Print()
	}
	fmt.Println(strings.Join(keys, "\n"))
	return nil
}

func configGet(cfg *config.Config, args Args) error {
	key := args.Arg(1)
	if key == "" {
		return NewValidationErrorWithExample("key", "", "a key is required", "docqa config get server.base_url")
	}
	val, err := cfg.Get(key)
	if err != nil {
		if errors.Is(err, config.ErrUnknownKey) {
			return NewNotFoundError("config key", key)
		}
		return NewValidationError("key", key, err.Error())
	}
	if args.JSON {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": val}).Print()
	}
	fmt.Println(val)
	return nil
}
