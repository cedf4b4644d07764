// Package lifecycle holds timing limits shared by start and stop hooks.
package lifecycle

import "time"

// DefaultTimeout bounds a single start or stop hook, such as a database ping or server shutdown.
const DefaultTimeout = 10 * time.Second
