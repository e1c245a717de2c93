// internal/transport/retry.go
package transport

// withRetry runs op up to attempts times, stopping early on success or on the
// first error the transient predicate rejects. The last error is returned when
// the budget is exhausted. Retry policy stays an explicit value here rather
// than being baked into each call site.
func withRetry(attempts int, transient func(error) bool, op func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = op(); err == nil {
			return nil
		}
		if !transient(err) {
			return err
		}
	}
	return err
}
