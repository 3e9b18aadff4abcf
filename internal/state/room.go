package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidRoom = errors.New("invalid room identifier")

const maxRoomLen = 128

// ParseRoom normalizes a path-style room identifier. The empty string is
// the landing state and is returned without error.
func ParseRoom(path string) (string, error) {
	room := strings.Trim(path, "/")
	if room == "" {
		return "", nil
	}
	if len(room) > maxRoomLen {
		return "", fmt.Errorf("%w: longer than %d", ErrInvalidRoom, maxRoomLen)
	}
	for _, seg := range strings.Split(room, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: bad segment in %q", ErrInvalidRoom, path)
		}
		for _, r := range seg {
			if !roomRune(r) {
				return "", fmt.Errorf("%w: %q not allowed", ErrInvalidRoom, r)
			}
		}
	}
	return room, nil
}

func roomRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-', r == '_', r == '.', r == '~':
		return true
	}
	return false
}

// NewRoom picks a random room for a new session.
func NewRoom() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}
