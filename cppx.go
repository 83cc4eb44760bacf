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

// Package cppx is a macro-expansion and conditional-compilation engine for
// C-family source text.
package cppx

import (
	"context"
	"io"

	"github.com/fwessels/cppx/internal/diag"
	"github.com/fwessels/cppx/internal/macro"
	"github.com/fwessels/cppx/internal/preprocessor"
	"github.com/fwessels/cppx/internal/token"
)

type (
	Preprocessor = preprocessor.Preprocessor
	Options      = preprocessor.Options
	Result       = preprocessor.Result
	Handler      = preprocessor.Handler
	HandlerFunc  = preprocessor.HandlerFunc
	Directive    = preprocessor.Directive

	Includer     = preprocessor.Includer
	IncluderFunc = preprocessor.IncluderFunc
	IncludeForm  = preprocessor.IncludeForm
	DirIncluder  = preprocessor.DirIncluder
	MapIncluder  = preprocessor.MapIncluder

	Token      = token.Token
	Diagnostic = diag.Diagnostic
	Error      = diag.Failure
	Sink       = diag.Sink
	SinkFunc   = diag.SinkFunc

	Macro = macro.Macro
)

const (
	Quoted = preprocessor.Quoted
	Angle  = preprocessor.Angle

	Report       = macro.Report
	Override     = macro.Override
	Preserve     = macro.Preserve
	WarnOverride = macro.WarnOverride

	Exact    = macro.Exact
	Semantic = macro.Semantic

	DeleteComma = preprocessor.DeleteComma
	KeepComma   = preprocessor.KeepComma
)

var (
	ErrNotFound          = preprocessor.ErrNotFound
	ErrHandlerExists     = preprocessor.ErrHandlerExists
	ErrRegistryFrozen    = preprocessor.ErrRegistryFrozen
	ErrReservedDirective = preprocessor.ErrReservedDirective
	ErrHandlerReentry    = preprocessor.ErrHandlerReentry
)

func New(opts Options) *Preprocessor {
	return preprocessor.New(opts)
}

// Preprocess runs src once with opts and writes the text output to w.
func Preprocess(ctx context.Context, w io.Writer, name string, src []byte, opts Options) (*Result, error) {
	res, err := preprocessor.New(opts).Run(ctx, name, src)
	if _, werr := res.WriteTo(w); werr != nil && err == nil {
		err = werr
	}
	return res, err
}

// PreprocessString is Preprocess for in-memory text.
func PreprocessString(src string, opts Options) (string, error) {
	res, err := preprocessor.New(opts).Run(context.Background(), "<string>", []byte(src))
	return res.String(), err
}
