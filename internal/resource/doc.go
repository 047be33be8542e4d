// Package resource implements the Controller that bounds what the index layer
// may consume outside the engines' own files.
//
//   - Memory: bytes held by the node/bucket block cache (non-blocking, fail-fast)
//   - Background workers: concurrent bulk index builds and snapshot transfers
//   - IO: token-bucket rate limit for snapshot upload/download streams
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:     64 << 20,
//	    MaxBackgroundWorkers: 4,
//	    IOLimitBytesPerSec:   32 << 20,
//	})
//
//	if err := rc.AcquireBackground(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseBackground()
//
// All methods handle a nil Controller gracefully: they become no-ops. This
// allows optional limiting without nil checks everywhere.
package resource
