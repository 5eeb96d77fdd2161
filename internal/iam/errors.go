// Package iam orchestrates user, role and module administration on top of
// the relational store. Writes that touch both a parent row and its
// relation set run inside a single transaction, and every referenced id is
// validated before the first write.
package iam

import "errors"

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("iam: not found")
	// ErrInvalidReference indicates a related id that does not exist.
	ErrInvalidReference = errors.New("iam: invalid reference")
)
