//go:build pulse_proto_31

package compat

const selected = V31
