//go:build pulse_proto_33

package compat

const selected = V33
