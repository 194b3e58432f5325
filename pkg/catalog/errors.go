package catalog

import "errors"

var errNotAnObject = errors.New("result item is not a JSON object")
