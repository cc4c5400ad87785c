// Package tracked implements a client-side change-tracking collection.
//
// A Set wraps entities loaded from a Cupboard table. Each entity is held in an
// Entry that records its lifecycle state and, for entities that came from
// storage, a snapshot of its field values. Membership changes made through Add,
// Remove and Clear update the entry state directly; field writes made on the
// entities themselves are found by diffing against the snapshot when the
// persistence collaborator asks for Changes.
//
// Dirty detection costs O(entries × fields) per Changes call. The snapshot is
// shallow: map and slice fields share backing storage with the live entity, so
// in-place mutation of their contents is not detected unless the entity type
// implements Diffable and copies them itself. Fields promoted from an
// embedded exported struct pointer are tracked like the entity's own fields;
// other pointers to structs are relationships and are not diffed. Float
// fields treat NaN as equal to NaN, but a NaN nested inside a map, slice or
// struct field still compares unequal.
//
// A Set performs no locking. Callers that share one across goroutines must
// synchronize externally, and must not mutate a Set while ranging over All.
package tracked
