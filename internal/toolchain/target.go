// Package toolchain wraps the Rust toolchain invocations used by the
// pipeline. All commands run with an explicitly pinned CARGO_HOME and
// CARGO_TARGET_DIR so builds in different sandboxes never share ambient
// state.
package toolchain

// Target is the compilation destination. It selects the toolchain flags,
// the dependency cache partition, and the artifact shape.
type Target string

const (
	// TargetNative compiles for the host. Used by the gating checks and the
	// verification binary.
	TargetNative Target = "native"
	// TargetWasm compiles the shippable client module.
	TargetWasm Target = "wasm"
)

// Triple returns the --target triple argument, or "" for the host target.
func (t Target) Triple() string {
	if t == TargetWasm {
		return "wasm32-unknown-unknown"
	}
	return ""
}

func (t Target) String() string { return string(t) }
