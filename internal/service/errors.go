package service

import "errors"

// ErrReferenceConflict means the order reference already belongs to another user.
var ErrReferenceConflict = errors.New("order reference belongs to another user")
