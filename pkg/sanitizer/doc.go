// Package sanitizer normalizes participant input before validation and storage.
//
// All functions are idempotent: applying them twice yields the same result as
// applying them once. Invalid input degrades to an empty string rather than an
// error so the validator can report it.
//
// Normalization includes:
//   - Names: collapse inner whitespace, trim leading/trailing spaces
//   - Ids: lowercase, strip everything but letters and digits ("R 1" becomes "r1")
//   - Strategies and policies: lowercase, trimmed
package sanitizer
