// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package shader retrieves the WGSL sources of the cell pipelines.
//
// Shader bodies are opaque to the simulation: this package only fetches
// them, names them by stage, checks that the compute shader's workgroup size
// agrees with the configuration, and optionally pre-flights them through
// the naga compiler so that syntax errors surface with the shader name and
// stage before any device object exists.
//
// Three fetchers are provided:
//
//   - HTTPFetcher: GET <BaseURL>/<name>.wgsl from a text-fetch service
//   - FSFetcher: <name>.wgsl from any fs.FS (e.g. os.DirFS)
//   - Embedded: the default shaders compiled into the binary
//
// Example:
//
//	prog, err := shader.Load(ctx, shader.Embedded(), shader.DefaultNames)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := prog.CheckWorkgroupSize(8); err != nil {
//	    log.Fatal(err)
//	}
package shader
