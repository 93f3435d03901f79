// Package textutil provides text helpers shared by the workflow steps:
// filename sanitizing, Unicode normalization, slugs and rune-safe truncation.
package textutil
