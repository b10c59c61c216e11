// Package memory provides typed object pools that can take part in
// epoch-based reclamation. A Pool satisfies Reclaimer, so a guard can
// retire an object into it once no pinned goroutine can still see it.
//
// The memory package has no dependencies on the rest of the module and
// sits below infra/epoch and metrics/bucket.
package memory
