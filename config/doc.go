// Package config holds the tool configuration surface: per-key tool settings,
// the read/update store interface an admin surface consumes, and the resolver
// that validates settings into tool descriptors. Resolution fails closed; an
// enabled tool with incomplete settings is an error, never a silent omission.
package config
