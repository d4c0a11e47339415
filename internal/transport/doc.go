// Package transport carries binary nodes over a framed stream connection and
// correlates IQ responses with their requests by id.
package transport
