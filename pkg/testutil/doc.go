// Package testutil provides utilities for testing torygg components.
//
// Key components:
//   - TestEnvironment: Core test orchestrator with isolation and cleanup
//   - WriteTree / ReadTree: declarative file tree setup and comparison
//   - Assert helpers: lightweight assertions for packages that do not use testify
//
// Usage guidelines:
//   - Prefer EnvMemoryOnly for speed and isolation
//   - Use EnvIsolated only where real rename/lock semantics matter
//   - All test data should be defined inline, not in external files
//   - Each test should be completely isolated with no shared state
package testutil
