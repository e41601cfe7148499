package conversation

import "errors"

var (
	// ErrRepositoryRequired is returned when a Manager is built without a repository.
	ErrRepositoryRequired = errors.New("conversation repository is required")
)
