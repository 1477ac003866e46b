// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Color modes accepted by --color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// ConfigureColor sets the color profile used by every lipgloss style.
// In auto mode, color is used only when stdout is a terminal whose
// environment supports it.
func ConfigureColor(mode string) error {
	switch mode {
	case ColorAuto:
		if term.IsTerminal(int(os.Stdout.Fd())) {
			lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())
		} else {
			lipgloss.SetColorProfile(termenv.Ascii)
		}
	case ColorAlways:
		lipgloss.SetColorProfile(termenv.ANSI256)
	case ColorNever:
		lipgloss.SetColorProfile(termenv.Ascii)
	default:
		return fmt.Errorf("unknown color mode %q (want %s, %s, or %s)", mode, ColorAuto, ColorAlways, ColorNever)
	}
	return nil
}

// Styles are the text styles commands render with.
type Styles struct {
	Header lipgloss.Style
	Label  lipgloss.Style
	ID     lipgloss.Style
	Dim    lipgloss.Style
	Good   lipgloss.Style
	Bad    lipgloss.Style
}

// DefaultStyles returns the shared palette.
func DefaultStyles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().Bold(true).Underline(true),
		Label:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		ID:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		Dim:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Good:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Bad:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

// Truncate shortens s to width display cells, ending with an ellipsis
// when it was cut. Escape sequences in s do not count toward the width.
func Truncate(s string, width int) string {
	if width <= 0 || ansi.StringWidth(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}
