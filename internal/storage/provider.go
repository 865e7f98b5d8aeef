// Package storage abstracts document blob storage behind a provider
// interface with local-disk and S3 implementations.
package storage

import "context"

// Provider stores and retrieves document blobs by opaque reference. Put
// returns the reference used for later Get and Delete calls.
type Provider interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	Delete(ctx context.Context, ref string) error
}
