// Package testutil provides shared helpers for tests: a seeded thread-safe
// RNG, clustered vector generators, and brute-force nearest neighbor search
// for ground truth.
package testutil
