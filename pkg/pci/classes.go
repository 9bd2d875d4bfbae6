// SPDX-FileCopyrightText: 2025 Clyso GmbH
//
// SPDX-License-Identifier: Apache-2.0

package pci

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ClassMatch selects devices whose masked 24-bit class code equals Code.
// Aliases use partial masks so e.g. every ethernet subclass variant matches.
type ClassMatch struct {
	Code uint32
	Mask uint32
}

// Matches reports whether the given class code falls under the match.
func (c ClassMatch) Matches(class ID) bool {
	return uint32(class)&c.Mask == c.Code
}

// Built-in class aliases. Extra aliases can come from the config file.
var classAliases = map[string]ClassMatch{
	"nvme":     {Code: 0x010802, Mask: 0xffffff},
	"ethernet": {Code: 0x020000, Mask: 0xffff00},
	"raid":     {Code: 0x010400, Mask: 0xffff00},
	"gpu":      {Code: 0x030000, Mask: 0xff0000},
}

// ClassAliasNames returns the known alias names for help text.
func ClassAliasNames() []string {
	names := make([]string, 0, len(classAliases))
	for name := range classAliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveClass turns a class filter argument into a ClassMatch. The
// argument is either a known alias or a literal hex class code, which is
// matched exactly. Extra aliases (from configuration) take precedence over
// the built-in table.
func ResolveClass(arg string, extra map[string]ClassMatch) (ClassMatch, error) {
	key := strings.ToLower(strings.TrimSpace(arg))
	if m, ok := extra[key]; ok {
		return m, nil
	}
	if m, ok := classAliases[key]; ok {
		return m, nil
	}
	code, err := strconv.ParseUint(strings.TrimPrefix(key, "0x"), 16, 24)
	if err != nil {
		return ClassMatch{}, fmt.Errorf("class %q is neither a known alias (%s) nor a hex class code",
			arg, strings.Join(ClassAliasNames(), ", "))
	}
	return ClassMatch{Code: uint32(code), Mask: 0xffffff}, nil
}
