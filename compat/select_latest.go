//go:build !pulse_proto_30 && !pulse_proto_31 && !pulse_proto_32 && !pulse_proto_33 && !pulse_proto_34

package compat

const selected = Latest
