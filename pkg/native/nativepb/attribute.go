// Copyright 2025 The Ember Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package nativepb

import "fmt"

// ColumnType enumerates the column types the native runtime understands.
type ColumnType int32

const (
	ColumnType_BOOL ColumnType = iota
	ColumnType_INT64
	ColumnType_FLOAT64
	ColumnType_STRING
	ColumnType_BYTES
	ColumnType_TIMESTAMP
)

var columnTypeNames = map[ColumnType]string{
	ColumnType_BOOL:      "BOOL",
	ColumnType_INT64:     "INT64",
	ColumnType_FLOAT64:   "FLOAT64",
	ColumnType_STRING:    "STRING",
	ColumnType_BYTES:     "BYTES",
	ColumnType_TIMESTAMP: "TIMESTAMP",
}

func (t ColumnType) String() string {
	if s, ok := columnTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ColumnType(%d)", int32(t))
}

// Attribute describes one output column of a plan node as it crosses the
// runtime boundary.
type Attribute struct {
	Name     string     `json:"name"`
	Type     ColumnType `json:"type"`
	Nullable bool       `json:"nullable"`
}

// RenameAttributes returns a copy of schema where attribute i carries
// names[i] and all other properties are unchanged. It requires
// len(schema) == len(names).
func RenameAttributes(schema []Attribute, names []string) []Attribute {
	out := make([]Attribute, len(schema))
	for i := range schema {
		out[i] = schema[i]
		out[i].Name = names[i]
	}
	return out
}
