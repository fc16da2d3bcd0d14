package access

import "errors"

var ErrRequestNotFound = errors.New("access request not found or already resolved")
