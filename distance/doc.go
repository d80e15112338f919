// Package distance provides the vector distance calculations used by the
// trajectory classification engine.
//
// The spatial indexes search on squared L2 distance and only take the square
// root at the reporting boundary, so the expensive kernel stays sqrt-free.
package distance
