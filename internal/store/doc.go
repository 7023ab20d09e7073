// Package store holds the key-value backends (in-memory and SQLite) and the
// task store built on them. A process opens exactly one backend; records are
// never written to two stores.
package store
