// Package testutil provides testing utilities and fixtures for the
// authorization server. It includes a controllable clock with timers,
// an HTTP request builder and a small registry fixture.
package testutil
