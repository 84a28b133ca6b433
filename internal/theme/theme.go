// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package theme

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
)

// Theme holds the console colors, one per message role.
type Theme struct {
	HeaderColor     string `json:"header_color"`
	UserColor       string `json:"user_color"`
	ToolCallColor   string `json:"tool_call_color"`
	ToolResultColor string `json:"tool_result_color"`
	AgentColor      string `json:"agent_color"`
	ErrorColor      string `json:"error_color"`
}

// ColorScheme holds the printable styles built from a Theme.
type ColorScheme struct {
	Header     *color.Color
	User       *color.Color
	ToolCall   *color.Color
	ToolResult *color.Color
	Agent      *color.Color
	Error      *color.Color
}

// DefaultTheme returns a theme with default values
func DefaultTheme() *Theme {
	return &Theme{
		HeaderColor:     "#cdd6f4",
		UserColor:       "#a6e3a1",
		ToolCallColor:   "#f9e2af",
		ToolResultColor: "#cba6f7",
		AgentColor:      "#89b4fa",
		ErrorColor:      "#f38ba8",
	}
}

// LoadTheme loads theme configuration from a JSON file. Missing keys keep
// their default; a missing file yields the default theme.
func LoadTheme(filepath string) (*Theme, error) {
	theme := DefaultTheme()
	if filepath == "" {
		return theme, nil
	}

	data, err := os.ReadFile(filepath)
	if os.IsNotExist(err) {
		return theme, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, theme); err != nil {
		return nil, err
	}

	return theme, nil
}

// ToColorScheme converts the theme into bold 24-bit color styles. The
// theme must have passed ValidateTheme.
func (t *Theme) ToColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:     hexStyle(t.HeaderColor),
		User:       hexStyle(t.UserColor),
		ToolCall:   hexStyle(t.ToolCallColor),
		ToolResult: hexStyle(t.ToolResultColor),
		Agent:      hexStyle(t.AgentColor),
		Error:      hexStyle(t.ErrorColor),
	}
}

// DisabledColorScheme returns a color scheme with all colors disabled (for NO_COLOR).
func DisabledColorScheme() *ColorScheme {
	plain := func() *color.Color {
		c := color.New()
		c.DisableColor()
		return c
	}
	return &ColorScheme{
		Header:     plain(),
		User:       plain(),
		ToolCall:   plain(),
		ToolResult: plain(),
		Agent:      plain(),
		Error:      plain(),
	}
}

func hexStyle(hex string) *color.Color {
	r, g, b, err := parseHexColor(hex)
	if err != nil {
		return color.New(color.Bold)
	}
	return color.RGB(r, g, b).Add(color.Bold)
}

// parseHexColor decodes #RGB or #RRGGBB.
func parseHexColor(hex string) (int, int, int, error) {
	if err := ValidateColor(hex); err != nil {
		return 0, 0, 0, err
	}
	digits := hex[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	value, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}
	return int(value >> 16 & 0xff), int(value >> 8 & 0xff), int(value & 0xff), nil
}
