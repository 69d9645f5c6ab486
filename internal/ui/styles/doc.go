// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the docqa TUI and CLI.

All colors use Lip Gloss AdaptiveColor for automatic light/dark terminal
detection.

# Color System (colors.go)

  - Purple - Answers and the selected turn
  - Cyan - Brand color, questions and prompts
  - Emerald - Selected documents and success states
  - Amber - Status line and warnings
  - Rose - Errors

# Theme System (theme.go)

	theme := styles.NewTheme()
	theme.SetSize(width, height)
	if theme.GetLayoutMode() == styles.LayoutNarrow {
		// hide the document panel
	}

# Spinners (spinner.go)

	sp := spinner.New(spinner.WithSpinner(styles.DotsSpinner.Bubbles()))
*/
package styles
