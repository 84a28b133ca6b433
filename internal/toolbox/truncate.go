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

package toolbox

import "unicode/utf8"

// TruncationMarker is appended to output cut short by a size bound.
const TruncationMarker = "\n[Output truncated]"

// Truncate bounds s to max characters. An overflowing string is cut and
// the marker appended so that the result, marker included, is at most max
// characters long. A non-positive max disables the bound.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	marker := []rune(TruncationMarker)
	if max <= len(marker) {
		return string(marker[len(marker)-max:]), true
	}
	keep := max - len(marker)
	runes := []rune(s)
	return string(runes[:keep]) + TruncationMarker, true
}
