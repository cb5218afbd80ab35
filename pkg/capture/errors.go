// Package capture turns frames arriving on an interface into a filtered
// stream of decoded packet frames.
package capture

import "errors"

var (
	ErrInvalidOptions = errors.New("xsocket: invalid capture options")
	ErrAlreadyStarted = errors.New("xsocket: listener already started")
)
