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
	"context"

	"ox/internal/toolbox"
)

const builtinToolVersion = "1.0.0"

// registerBuiltInTools registers the filesystem tools bound to box.
func registerBuiltInTools(r *Registry, box *toolbox.Toolbox) {
	r.mustRegister(&ToolDefinition{
		NameValue: "ls",
		DescriptionValue: "List the entries of a directory inside the working directory. " +
			"Directories are listed first and end with '/'.",
		ParametersValue: mustSchemaParametersFor[lsArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			parsed, err := unmarshalAndValidate[lsArgs](args)
			if err != nil {
				return "", err
			}
			return box.List(ctx, parsed.Path)
		},
		ValidateFunc: ValidateArgsStruct[lsArgs](),
		VersionValue: builtinToolVersion,
	})

	r.mustRegister(&ToolDefinition{
		NameValue: "read_files",
		DescriptionValue: "Read one or more text files. Each file is returned as its path, " +
			"a blank line and its content.",
		ParametersValue: mustSchemaParametersFor[readFilesArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			parsed, err := unmarshalAndValidate[readFilesArgs](args)
			if err != nil {
				return "", err
			}
			return box.ReadFiles(ctx, filterStringSlice(parsed.Paths))
		},
		ValidateFunc: ValidateArgsStruct[readFilesArgs](),
		VersionValue: builtinToolVersion,
	})

	r.mustRegister(&ToolDefinition{
		NameValue: "find",
		DescriptionValue: "Find files and directories whose name contains a pattern " +
			"(case-insensitive) below a directory.",
		ParametersValue: mustSchemaParametersFor[findArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			parsed, err := unmarshalAndValidate[findArgs](args)
			if err != nil {
				return "", err
			}
			return box.Find(ctx, parsed.Path, parsed.Pattern)
		},
		ValidateFunc: ChainValidation(
			RequireStringArg("pattern", "missing or invalid 'pattern' parameter"),
			ValidateArgsStruct[findArgs](),
		),
		VersionValue: builtinToolVersion,
	})

	r.mustRegister(&ToolDefinition{
		NameValue: "grep",
		DescriptionValue: "Search files for lines matching a POSIX basic regular expression. " +
			"Paths may be glob patterns. Matches are shown with two lines of context.",
		ParametersValue: mustSchemaParametersFor[grepArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			parsed, err := unmarshalAndValidate[grepArgs](args)
			if err != nil {
				return "", err
			}
			return box.Grep(ctx, parsed.Pattern, filterStringSlice(parsed.Paths))
		},
		ValidateFunc: ChainValidation(
			RequireStringArg("pattern", "missing or invalid 'pattern' parameter"),
			RequireNonEmptyArg("paths", "missing or invalid 'paths' parameter"),
			ValidateArgsStruct[grepArgs](),
		),
		VersionValue: builtinToolVersion,
	})

	r.mustRegister(&ToolDefinition{
		NameValue: "tree",
		DescriptionValue: "Show the directory structure below a path. max_depth 1 shows only " +
			"the path itself, each extra level shows one more level of children.",
		ParametersValue: mustSchemaParametersFor[treeArgs](),
		ExecuteFunc: func(ctx context.Context, args map[string]interface{}) (string, error) {
			parsed, err := unmarshalAndValidate[treeArgs](args)
			if err != nil {
				return "", err
			}
			opts := toolbox.DefaultTreeOptions()
			opts.MaxOutput = box.Config().MaxOutput
			opts.IncludeFiles = parsed.IncludeFiles
			if parsed.MaxDepth != nil {
				opts.MaxDepth = *parsed.MaxDepth
			}
			return box.Tree(ctx, parsed.Path, opts)
		},
		ValidateFunc: ValidateArgsStruct[treeArgs](),
		VersionValue: builtinToolVersion,
	})
}

func filterStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
