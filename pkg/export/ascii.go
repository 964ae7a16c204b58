// Copyright 2025 Tom Barlow
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

package export

import (
	"fmt"
	"strings"

	"github.com/flowtrace/flowtrace/pkg/flow"
)

// ASCII renders the flow as a simple vertical text diagram, one boxed
// task per row in declaration order.
func ASCII(doc *flow.Document) string {
	if len(doc.Tasks) == 0 {
		return fmt.Sprintf("Flow: %s\n(No tasks)\n", doc.Flow)
	}

	var b strings.Builder
	header := fmt.Sprintf("Flow: %s", doc.Flow)
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("=", len(header)) + "\n\n")

	for i, t := range doc.Tasks {
		name := t.Name
		ctype := string(t.ComponentType)
		width := len(name)
		if len(ctype) > width {
			width = len(ctype)
		}
		width += 4

		border := "+" + strings.Repeat("-", width-2) + "+"
		b.WriteString(border + "\n")
		b.WriteString("|" + center(name, width-2) + "|\n")
		b.WriteString("|" + center(ctype, width-2) + "|\n")
		b.WriteString(border + "\n")

		if i < len(doc.Tasks)-1 {
			b.WriteString("    |\n    v\n\n")
		}
	}
	return b.String()
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
