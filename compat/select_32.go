//go:build pulse_proto_32

package compat

const selected = V32
