package registry

import "errors"

var ErrUnknownToken = errors.New("unknown token")
