// Package store is the persistence edge of the household: a small key-value
// port with several backends and the codec that maps a household snapshot
// onto stable string keys.
package store

import "context"

// KV is the key-value port. Get reports a missing key with ok=false and no error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
