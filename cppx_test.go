/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cppx

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPreprocessString(t *testing.T) {
	tests := []struct {
		name string
		in   string
		out  string
	}{
		{"object", "#define N 42\nint a[N];\n", "int a[42];\n"},
		{"function", "#define SQ(x) ((x)*(x))\nSQ(n+1)\n", "((n+1)*(n+1))\n"},
		{"conditional", "#if 2 > 1\nyes\n#else\nno\n#endif\n", "yes\n"},
		{"file", "__FILE__\n", "\"<string>\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PreprocessString(tt.in, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.out, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPreprocess(t *testing.T) {
	var buf bytes.Buffer
	opts := Options{
		Includer: MapIncluder{"defs.h": "#define GREETING \"hi\"\n"},
		Defines:  map[string]string{"TIMES": "3"},
	}
	res, err := Preprocess(context.Background(), &buf, "main.c", []byte("#include <defs.h>\nGREETING TIMES\n"), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff("\"hi\" 3\n", buf.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if len(res.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %v", res.Diagnostics)
	}
}

func TestPreprocessFatal(t *testing.T) {
	var buf bytes.Buffer
	_, err := Preprocess(context.Background(), &buf, "main.c", []byte("before\n#error nope\nafter\n"), Options{})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if e.Message != "#error nope" {
		t.Errorf("got message %q", e.Message)
	}
	if diff := cmp.Diff("before\n", buf.String()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
