package session

import "errors"

var errNotObject = errors.New("identity is not a JSON object")
