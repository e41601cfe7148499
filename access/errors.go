package access

import "errors"

var (
	// ErrInvalidPolicy indicates a policy file that parsed but is not usable.
	ErrInvalidPolicy = errors.New("invalid access policy")

	// ErrEmptyAliasName indicates an alias without a mention token.
	ErrEmptyAliasName = errors.New("alias name is empty")
)
