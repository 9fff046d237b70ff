// Package blob reads objects from a blob store: existence checks, full
// downloads and flat directory listings. Providers register a factory
// (local filesystem, S3 and S3-compatible services); import the provider
// package for its side effect before calling New.
package blob
