// Package utils provides small shared helpers for time handling and string
// bounding used across the fetcher and the store.
package utils
