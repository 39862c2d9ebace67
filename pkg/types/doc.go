// Package types defines the shared domain types for kitup: the
// filesystem interface all mutation goes through, resource
// descriptors, the persisted installation record, and the report
// types surfaced to callers.
package types
