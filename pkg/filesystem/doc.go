// Package filesystem provides implementations of types.FS: one backed
// by the operating system and one backed by afero for tests.
package filesystem
