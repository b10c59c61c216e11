// Package epoch implements epoch-based reclamation.
//
// A goroutine registers a Handle with a Collector and pins it before it
// touches shared data. While pinned, nothing retired through a Guard can
// be reclaimed underneath it. Retired work is batched in a local bag of
// up to 64 entries; a full bag (or an explicit Flush) is sealed with the
// current global epoch and pushed to the collector's lock-free queue.
//
// The global epoch only advances when every pinned participant has
// observed the current epoch. A sealed bag runs once the global epoch is
// two steps past its seal, at which point no goroutine that was pinned
// when the work was retired can still be pinned.
//
// Handles are owned by a single goroutine. The package-level Pin borrows
// a pooled handle from the default collector and returns it on the
// outermost Unpin.
package epoch
