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

import (
	"fmt"
	"regexp"
	"strings"
)

// compileBasicRegexp compiles a POSIX basic regular expression, GNU flavour:
// \+ \? \| \( \) \{ \} are operators, their bare forms are literals, and
// ^ $ * are special only where BRE makes them so.
func compileBasicRegexp(pattern string) (*regexp.Regexp, error) {
	translated, err := translateBRE(pattern)
	if err != nil {
		return nil, err
	}
	return regexp.Compile(translated)
}

func translateBRE(pattern string) (string, error) {
	src := []rune(pattern)
	var out []byte
	// atStart is true where a BRE treats '*' as a literal and '^' as an anchor.
	atStart := true
	// atom is the offset in out of the last atom; repeated is set while the
	// last token was a repetition operator.
	atom := -1
	repeated := false
	var groups []int

	literal := func(s string) {
		atom = len(out)
		out = append(out, s...)
		repeated = false
	}
	// repeat appends a repetition operator. Stacked operators, which RE2
	// refuses, apply to the already repeated atom as a group.
	repeat := func(op string) {
		if repeated && atom >= 0 {
			inner := string(out[atom:])
			out = append(out[:atom], "(?:"+inner+")"...)
		}
		out = append(out, op...)
		repeated = true
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch c {
		case '\\':
			if i+1 >= len(src) {
				return "", fmt.Errorf("trailing backslash")
			}
			i++
			n := src[i]
			switch n {
			case '(':
				groups = append(groups, len(out))
				out = append(out, '(')
				atStart, repeated = true, false
				continue
			case '|':
				out = append(out, '|')
				atStart, repeated, atom = true, false, -1
				continue
			case ')':
				if len(groups) == 0 {
					return "", fmt.Errorf("unmatched \\)")
				}
				open := groups[len(groups)-1]
				groups = groups[:len(groups)-1]
				out = append(out, ')')
				atom, repeated = open, false
			case '{':
				if atStart {
					literal(`\{`)
					break
				}
				end, interval, err := translateInterval(src, i+1)
				if err != nil {
					return "", err
				}
				repeat(interval)
				i = end
			case '}':
				literal(`\}`)
			case '+', '?':
				if atStart {
					literal(`\` + string(n))
					break
				}
				repeat(string(n))
			case '<', '>':
				literal(`\b`)
			case 'w', 'W', 's', 'S', 'b', 'B':
				literal(`\` + string(n))
			case '1', '2', '3', '4', '5', '6', '7', '8', '9':
				return "", fmt.Errorf("back-references are not supported")
			default:
				literal(regexp.QuoteMeta(string(n)))
			}
		case '^':
			if atStart {
				out = append(out, '^')
				continue
			}
			literal(`\^`)
		case '$':
			if endsBranch(src, i+1) {
				literal("$")
			} else {
				literal(`\$`)
			}
		case '*':
			if atStart {
				literal(`\*`)
			} else {
				repeat("*")
			}
		case '[':
			end, class, err := translateBracket(src, i)
			if err != nil {
				return "", err
			}
			literal(class)
			i = end
		case '.':
			literal(".")
		case '+', '?', '(', ')', '|', '{', '}':
			literal(`\` + string(c))
		default:
			literal(regexp.QuoteMeta(string(c)))
		}
		atStart = false
	}
	if len(groups) > 0 {
		return "", fmt.Errorf("unmatched \\(")
	}
	return string(out), nil
}

// translateInterval reads the body of a \{m,n\} interval starting at
// src[start] and returns the index of the closing '}' and the RE2 form.
func translateInterval(src []rune, start int) (int, string, error) {
	for j := start; j+1 < len(src); j++ {
		if src[j] != '\\' {
			continue
		}
		if src[j+1] != '}' {
			break
		}
		body := string(src[start:j])
		if !intervalBody.MatchString(body) {
			return 0, "", fmt.Errorf("invalid content of \\{\\}")
		}
		if strings.HasPrefix(body, ",") {
			body = "0" + body
		}
		return j + 1, "{" + body + "}", nil
	}
	return 0, "", fmt.Errorf("unmatched \\{")
}

var intervalBody = regexp.MustCompile(`^(?:[0-9]+(?:,[0-9]*)?|,[0-9]+)$`)

// endsBranch reports whether position i closes a BRE branch, where '$'
// acts as an anchor.
func endsBranch(src []rune, i int) bool {
	if i >= len(src) {
		return true
	}
	return i+1 < len(src) && src[i] == '\\' && (src[i+1] == ')' || src[i+1] == '|')
}

// translateBracket converts the bracket expression starting at src[start]
// and returns the index of its closing ']'. Backslashes are literal inside
// POSIX brackets; character classes such as [:alpha:] carry over as is.
func translateBracket(src []rune, start int) (int, string, error) {
	var b strings.Builder
	b.WriteRune('[')
	i := start + 1
	if i < len(src) && src[i] == '^' {
		b.WriteRune('^')
		i++
	}
	if i < len(src) && src[i] == ']' {
		b.WriteString(`\]`)
		i++
	}
	for ; i < len(src); i++ {
		c := src[i]
		switch c {
		case ']':
			b.WriteRune(']')
			return i, b.String(), nil
		case '[':
			if i+1 < len(src) && src[i+1] == ':' {
				j := i + 2
				for j+1 < len(src) && (src[j] != ':' || src[j+1] != ']') {
					j++
				}
				if j+1 >= len(src) {
					return 0, "", fmt.Errorf("unterminated character class")
				}
				b.WriteString(string(src[i : j+2]))
				i = j + 1
				continue
			}
			b.WriteString(`\[`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(c)
		}
	}
	return 0, "", fmt.Errorf("unmatched [")
}
