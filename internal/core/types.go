// Package core defines the domain types shared by the object store:
// stored objects, closure edges, the filter DSL, and pagination cursors.
package core

import "time"

// SpeckleTypeCommit marks an object created through the commit linker.
const SpeckleTypeCommit = "commit"

// Object is a stored node in the object graph. The payload lives in Data;
// the remaining fields form the strongly typed envelope persisted alongside it.
type Object struct {
	ID            string `json:"id"`
	SpeckleType   string `json:"speckleType,omitempty"`
	ApplicationID string `json:"applicationId,omitempty"`
	Description   string `json:"description,omitempty"`
	Author        string `json:"author,omitempty"`

	// TotalChildrenCount and ChildrenCountByDepth are denormalized subtree
	// statistics computed from the closure map supplied at ingestion. They
	// are not recomputed if closure rows are added later.
	TotalChildrenCount   int         `json:"totalChildrenCount"`
	ChildrenCountByDepth map[int]int `json:"childrenCountByDepth,omitempty"`

	Data      Document  `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClosureEdge records that Child is reachable from Parent at minimum graph
// distance MinDepth. At most one row exists per (Parent, Child) pair.
type ClosureEdge struct {
	Parent   string `json:"parent"`
	Child    string `json:"child"`
	MinDepth int    `json:"minDepth"`
}

// Commit associates a stream with a commit object.
type Commit struct {
	StreamID string `json:"streamId"`
	CommitID string `json:"commitId"`
}
