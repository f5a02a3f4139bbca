// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package objspec

import (
	"strconv"
	"strings"
)

// String renders the canonical form of the spec: defaults made explicit
// (e.g. "I" becomes "I4"), bins joined by ", ", and no other whitespace.
func (s *Spec) String() string {
	parts := make([]string, len(s.Bins))
	for i, b := range s.Bins {
		parts[i] = b.String()
	}
	return strings.Join(parts, ", ")
}

// String renders one bin, including its mult prefix when it is not the
// default of 1.
func (b Bin) String() string {
	if b.Mult != 1 {
		return strconv.FormatUint(uint64(b.Mult), 10) + "*" + b.Value.String()
	}
	return b.Value.String()
}

// String renders one value node in canonical form.
func (v *Value) String() string {
	switch v.Kind {
	case KindBool:
		return "b"
	case KindInt:
		return "I" + strconv.Itoa(v.IntWidth)
	case KindDouble:
		return "D"
	case KindString:
		return "S" + strconv.FormatUint(uint64(v.Len), 10)
	case KindBytes:
		return "B" + strconv.FormatUint(uint64(v.Len), 10)
	case KindList:
		parts := make([]string, len(v.Elems))
		for i, e := range v.Elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ",") + "]"
	case KindMap:
		parts := make([]string, len(v.MapEntries))
		for i, e := range v.MapEntries {
			prefix := ""
			if e.KeyMult != 1 {
				prefix = strconv.FormatUint(uint64(e.KeyMult), 10) + "*"
			}
			parts[i] = prefix + e.Key.String() + ":" + e.Val.String()
		}
		return "{" + strings.Join(parts, ",") + "}"
	case KindConstBool:
		if v.BoolVal {
			return "true"
		}
		return "false"
	case KindConstInt:
		return strconv.FormatInt(v.IntVal, 10)
	case KindConstString:
		return strconv.Quote(v.StrVal)
	case KindConstDouble:
		return strconv.FormatFloat(v.DoubleVal, 'f', -1, 64) + "f"
	default:
		return "?"
	}
}
