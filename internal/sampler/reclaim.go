package sampler

import "runtime/debug"

// freeOSMemory forces the Go runtime to return freed heap pages to the OS,
// the "heap/native-memory reclamation hook" spec.md §4.3 calls for on a
// sustained memory breach.
func freeOSMemory() {
	debug.FreeOSMemory()
}
