// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/life"
	"github.com/gogpu/naga"
)

// errEmptySource is the cause reported for a shader with no text.
var errEmptySource = errors.New("shader source is empty")

// Validate compiles src with naga and discards the output. A failure is
// returned as *life.ShaderCompileError naming the shader and its stage.
func Validate(src Source) error {
	if src.Code == "" {
		return &life.ShaderCompileError{Name: src.Name, Stage: src.Stage, Err: errEmptySource}
	}
	spirv, err := naga.Compile(src.Code)
	if err != nil {
		return &life.ShaderCompileError{Name: src.Name, Stage: src.Stage, Err: err}
	}
	life.Logger().Debug("shader validated", "name", src.Name, "stage", src.Stage, "spirv_bytes", len(spirv))
	return nil
}

// Validate pre-flights every source of the program.
func (p Program) Validate() error {
	for _, src := range p.Sources() {
		if err := Validate(src); err != nil {
			return fmt.Errorf("validate program: %w", err)
		}
	}
	return nil
}
