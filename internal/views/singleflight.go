package views

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var loadGroup singleflight.Group

// singleflightLoad shares one load between concurrent callers of key. A caller
// whose context ends stops waiting; the load itself keeps running for the rest.
func singleflightLoad(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := loadGroup.DoChan(key, func() (any, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
