//go:build pulse_proto_34

package compat

const selected = V34
