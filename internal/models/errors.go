package models

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound    = status.Errorf(codes.NotFound, "not found")
	ErrTagConflict = status.Errorf(codes.AlreadyExists, "tag already used")
)

// IsNotFound reports whether err carries a NotFound status.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
