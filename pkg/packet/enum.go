package packet

import (
	"errors"
	"strconv"
	"strings"
)

// enumName holds the identifier and display name of a protocol constant.
type enumName struct {
	id   string
	name string
}

var errNotANumber = errors.New("not a known name or number")

func parseUint(s string, bits int) (uint64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, errNotANumber
	}
	return v, nil
}
