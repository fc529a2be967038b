package edgestore

import "errors"

var (
	// ErrEdgeNotFound is returned when an operation names an edge ID the
	// store has never seen.
	ErrEdgeNotFound = errors.New("edgestore: edge not found")
	// ErrNotCurrent is returned by Supersede when the target edge is
	// already superseded — only the current version of a triple may be
	// superseded again.
	ErrNotCurrent = errors.New("edgestore: edge is not the current version")
)
