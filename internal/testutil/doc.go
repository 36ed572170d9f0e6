// Package testutil provides helpers shared by package tests: temp-dir
// engines, seeding, and golden table dumps.
package testutil
