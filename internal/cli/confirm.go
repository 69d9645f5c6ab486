// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// RequireConfirmation asks before a destructive action.
//
//  1. --yes proceeds without asking.
//  2. JSON mode refuses, since there is nobody to answer.
//  3. A non-interactive stdin refuses.
//  4. Otherwise the user is prompted with a y/N question.
func RequireConfirmation(yes bool, action string, jsonMode bool) (bool, error) {
	if yes {
		return true, nil
	}
	if jsonMode {
		return false, NewValidationError("--yes", "", "confirmation is required in JSON mode")
	}
	if !IsTTY() {
		return false, NewValidationError("--yes", "", "confirmation is required but stdin is not a terminal")
	}
	return promptYesNo(os.Stdin, os.Stderr, action)
}

func promptYesNo(in io.Reader, out io.Writer, action string) (bool, error) {
	fmt.Fprintf(out, "Are you sure you want to %s? [y/N]: ", action)

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		if err == io.EOF {
			return false, nil
		}
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}

	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes", nil
}
