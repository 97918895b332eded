// Package preset defines the encoder parameter bundles jobs are built from.
//
// Presets are plain values: the built-in catalog ships a handful of common
// targets, configuration may add or replace entries, and a submission can
// layer Overrides on top of the chosen preset field by field. Codec and
// container semantics stay with the encoder; this package only validates that
// the fields the argument builder needs are present and consistent.
package preset
