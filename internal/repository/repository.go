package repository

import "errors"

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (postgres, memory) inside this directory.
// Missing rows are reported as sql.ErrNoRows by every implementation.

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}

// ErrDuplicate is returned by ContentRepository.Create when a live document already has the key.
var ErrDuplicate = errors.New("document already exists")
