package api

import (
	"errors"
	"fmt"
)

var errMissingParam = errors.New("malformed linea_sendBundle json param")

func unknownMethodError(method string) error {
	return fmt.Errorf("unknown method %q", method)
}
