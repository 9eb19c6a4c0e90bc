package engine

import (
	"errors"
	"fmt"

	"github.com/weftlabs/weft/internal/value"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("engine: closed")

// UnknownTokenError is returned by Resume when no suspended frame is
// waiting under the given continuation token.
type UnknownTokenError struct {
	Token string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("engine: no suspended execution for token %q", e.Token)
}

// IsUnknownToken reports whether err is an UnknownTokenError.
func IsUnknownToken(err error) bool {
	var e *UnknownTokenError
	return errors.As(err, &e)
}

// UnknownChannelError is returned for operations on a channel that was
// never opened.
type UnknownChannelError struct {
	Channel value.ChannelID
}

func (e *UnknownChannelError) Error() string {
	return fmt.Sprintf("engine: unknown channel %d", uint64(e.Channel))
}

// IsUnknownChannel reports whether err is an UnknownChannelError.
func IsUnknownChannel(err error) bool {
	var e *UnknownChannelError
	return errors.As(err, &e)
}
