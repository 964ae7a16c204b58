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

package errors

import (
	"testing"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ValidationError
		want string
	}{
		{
			name: "with field",
			err:  &ValidationError{Field: "component_type", Message: "unknown value"},
			want: "validation failed on component_type: unknown value",
		},
		{
			name: "without field",
			err:  &ValidationError{Message: "missing flow name"},
			want: "validation failed: missing flow name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &NotFoundError{Resource: "contract", ID: "orders_v1"}
	want := "contract not found: orders_v1"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigError_Unwrap(t *testing.T) {
	cause := New("boom")
	err := &ConfigError{Key: "lineage.endpoint", Reason: "unreachable", Cause: cause}

	if !Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestExportError_Error(t *testing.T) {
	cause := New("disk full")
	err := &ExportError{Target: "airflow", Path: "dag.py", Cause: cause}
	want := "export to airflow failed for dag.py: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	var exportErr *ExportError
	if !As(err, &exportErr) {
		t.Error("expected errors.As to match *ExportError")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "context") != nil {
		t.Error("Wrap(nil) should return nil")
	}

	cause := New("cause")
	wrapped := Wrap(cause, "context")
	if wrapped.Error() != "context: cause" {
		t.Errorf("Wrap() = %q", wrapped.Error())
	}
	if !Is(wrapped, cause) {
		t.Error("wrapped error should match cause via errors.Is")
	}
}
