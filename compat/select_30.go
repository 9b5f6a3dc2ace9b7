//go:build pulse_proto_30

package compat

const selected = V30
