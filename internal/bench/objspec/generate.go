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
	"fmt"
	"math/rand"
)

const alnumCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Populate generates a record (a map from wire bin name to Go value) from
// spec using rnd as the PRNG. If writeBinIndices is nil, every generated
// bin is populated; otherwise only the listed (0-based) generated-bin
// indices are. compressionRatio controls what fraction of each generated
// byte-string's leading bytes are random versus zero-filled.
func Populate(spec *Spec, rnd *rand.Rand, baseName string, writeBinIndices []int, compressionRatio float64) (map[string]any, error) {
	n := spec.NumGeneratedBins()
	if err := ValidateBinNames(baseName, n); err != nil {
		return nil, err
	}
	indices := writeBinIndices
	if indices == nil {
		indices = rangeN(n)
	}
	record := make(map[string]any, len(indices))
	for _, i := range indices {
		if i < 0 || i >= n {
			return nil, fmt.Errorf("objspec: bin index %d out of range [0,%d)", i, n)
		}
		valSpec := specForGeneratedIndex(spec, i)
		name := BinName(baseName, i, n)
		v, err := generateValue(valSpec, rnd, compressionRatio)
		if err != nil {
			return nil, fmt.Errorf("objspec: generating bin %q: %w", name, err)
		}
		record[name] = v
	}
	return record, nil
}

func rangeN(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// specForGeneratedIndex maps a 0-based generated-bin index back to the
// top-level Value spec it was expanded from (accounting for each bin's
// mult).
func specForGeneratedIndex(spec *Spec, idx int) *Value {
	cur := 0
	for _, b := range spec.Bins {
		if idx < cur+int(b.Mult) {
			return b.Value
		}
		cur += int(b.Mult)
	}
	return nil
}

func generateValue(v *Value, rnd *rand.Rand, compressionRatio float64) (any, error) {
	switch v.Kind {
	case KindBool:
		return rnd.Intn(2) == 1, nil
	case KindInt:
		return randomIntOfWidth(rnd, v.IntWidth), nil
	case KindDouble:
		return rnd.Float64() * 1_000_000, nil
	case KindString:
		return randomAlnumString(rnd, int(v.Len)), nil
	case KindBytes:
		return randomBytes(rnd, int(v.Len), compressionRatio), nil
	case KindList:
		elems := make([]any, len(v.Elems))
		for i, e := range v.Elems {
			ev, err := generateValue(e, rnd, compressionRatio)
			if err != nil {
				return nil, err
			}
			elems[i] = ev
		}
		return elems, nil
	case KindMap:
		m := make(map[any]any)
		for _, entry := range v.MapEntries {
			count := entry.KeyMult
			if count == 0 {
				count = 1
			}
			for i := uint32(0); i < count; i++ {
				k, err := generateValue(entry.Key, rnd, compressionRatio)
				if err != nil {
					return nil, err
				}
				val, err := generateValue(entry.Val, rnd, compressionRatio)
				if err != nil {
					return nil, err
				}
				m[k] = val
			}
		}
		return m, nil
	case KindConstBool:
		return v.BoolVal, nil
	case KindConstInt:
		return v.IntVal, nil
	case KindConstString:
		return v.StrVal, nil
	case KindConstDouble:
		return v.DoubleVal, nil
	default:
		return nil, fmt.Errorf("objspec: unhandled value kind %v", v.Kind)
	}
}

func randomIntOfWidth(rnd *rand.Rand, width int) int64 {
	if width <= 0 || width > 8 {
		width = 4
	}
	if width == 8 {
		v := rnd.Int63()
		if rnd.Intn(2) == 0 {
			v = -v
		}
		return v
	}
	bits := uint(width * 8)
	mask := (int64(1) << bits) - 1
	v := rnd.Int63() & mask
	signBit := int64(1) << (bits - 1)
	if v&signBit != 0 {
		v -= int64(1) << bits
	}
	return v
}

func randomAlnumString(rnd *rand.Rand, n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = alnumCharset[rnd.Intn(len(alnumCharset))]
	}
	return string(buf)
}

func randomBytes(rnd *rand.Rand, n int, compressionRatio float64) []byte {
	buf := make([]byte, n)
	randomLen := int(float64(n) * compressionRatio)
	if randomLen > n {
		randomLen = n
	}
	rnd.Read(buf[:randomLen])
	return buf
}
