// Package model defines the core domain types: a Model (one trajectory
// class with its reference points and search index) and a Collection (an
// ordered, exclusively-owned set of models whose insertion order defines
// the ordinals used by classification).
//
// Collections are replaced wholesale on reload, never mutated in place, so
// concurrent readers never observe partially-updated state.
package model
