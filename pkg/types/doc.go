// Package types defines the core interfaces shared across torygg.
// This includes the FS filesystem abstraction and the Pather interface
// that locates the data, config and profile directories.
package types
