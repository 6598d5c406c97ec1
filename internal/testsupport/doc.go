// Package testsupport provides shared helpers for package tests: temp-dir
// backed configs and a pre-opened asset store.
package testsupport
