// Package storage provides an S3-compatible object storage client.
//
// The archiver uses it for one thing: uploading a gzipped snapshot of the
// raw payloads observed during a run. The Client interface keeps the minio
// SDK behind a seam so the snapshot archiver can be tested with the mock in
// storage/mocks.
package storage
