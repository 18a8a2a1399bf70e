// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the querychat TUI.

All colors use Lip Gloss AdaptiveColor so the same palette works on light and
dark terminals. The theme mode from configuration ("auto", "dark", "light")
decides which half of each pair is used.

# Theme (theme.go)

	theme := styles.NewTheme(cfg.UI.Theme)
	bubble := theme.BotBubble.Render(text)

The theme also names the matching glamour style (GlamourStyle) and chroma
style and formatter (ChromaStyle, ChromaFormatter) so markdown answers and
highlighted queries agree with the rest of the screen.

# Colors (colors.go)

Accent colors (Purple, Cyan, Emerald, Rose, Amber), surfaces, text levels,
bubble and table colors. Status helpers pair every color with an ASCII
marker ([OK], [X], [!], [i]).

# Animation (animations.go)

QuerySpinner and DotsSpinner are bubbles spinner definitions. ElapsedText
formats the wait time shown next to the spinner.
*/
package styles
