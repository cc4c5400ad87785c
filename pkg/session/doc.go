// Package session replays the changes recorded by tracked sets into a
// Cupboard.
//
// A Session loads tracked.Set values from Cupboard tables, lets the caller
// mutate them freely, and then writes every Added, Modified and Deleted
// entity back with SaveChanges. Each successful write is accepted into its
// set at once, so a flush that stops on an error can be retried and resumes
// where it left off.
package session
