// Package stores provides save mirror implementations for colony progression.
// It includes SQLite-based storage with WAL mode and embedded migrations that
// keeps progression, placed objects and an operation journal, plus an
// in-memory mirror for previews and tests.
package stores
