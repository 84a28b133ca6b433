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

package tools

import (
	"encoding/json"
	"fmt"
)

// stringList decodes either a JSON array of strings or a single string.
// Models often send "paths": "a.txt" for a one-element list.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or a list of strings")
	}
	*l = many
	return nil
}

type lsArgs struct {
	Path string `json:"path,omitempty" jsonschema:"description=Directory to list relative to the working directory (default: .)"`
}

type readFilesArgs struct {
	Paths stringList `json:"paths" jsonschema:"description=Paths of the files to read in order" validate:"required"`
}

type findArgs struct {
	Path    string `json:"path,omitempty" jsonschema:"description=Directory to search (default: .)"`
	Pattern string `json:"pattern" jsonschema:"description=Substring to look for in entry names (case-insensitive)" validate:"required"`
}

type grepArgs struct {
	Pattern string     `json:"pattern" jsonschema:"description=POSIX basic regular expression to search for" validate:"required"`
	Paths   stringList `json:"paths" jsonschema:"description=Files or glob patterns to search" validate:"required,min=1"`
}

type treeArgs struct {
	Path         string `json:"path,omitempty" jsonschema:"description=Directory to render (default: .)"`
	MaxDepth     *int   `json:"max_depth,omitempty" jsonschema:"description=Depth limit where 1 shows only the directory itself (default: 1)"`
	IncludeFiles bool   `json:"include_files,omitempty" jsonschema:"description=Include files as well as directories"`
}
