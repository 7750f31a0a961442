package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Identity is the stable numeric key of a ledger account (the messenger user id).
type Identity int64

// ParseIdentity converts the stringified form used as a ledger document key.
func ParseIdentity(raw string) (Identity, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("identity is empty")
	}

	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("identity %q is not numeric: %w", raw, err)
	}

	return Identity(id), nil
}

func (id Identity) String() string {
	return strconv.FormatInt(int64(id), 10)
}
