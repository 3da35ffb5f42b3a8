// Package generation defines the boundary between agent capabilities and
// external AI text generation services. The Generator interface is
// implemented by internal/platform/gemini and faked in tests.
package generation
