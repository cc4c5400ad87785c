// Package types defines the Cupboard and Table storage contracts, the entity
// types stored in them, the entity registry, and the standard errors shared by
// backends and the change-tracking layer.
package types
