//go:build !unix

package engine

// Platforms without flock fall back to no cross-process exclusion; the
// process-local writer mutex still applies.
func acquireDirLock(string) (func() error, error) {
	return func() error { return nil }, nil
}
