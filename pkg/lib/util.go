package lib

import (
	"io"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Logger is shared by every package in this library. It discards output
// until a binary configures it.
var Logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// NewID generates a UUID version 4 string (RFC 4122)
func NewID() string {
	return uuid.NewString()
}

// ShortID returns the first eight characters of a fresh id, enough to tell
// runs apart on a terminal.
func ShortID() string {
	return NewID()[:8]
}
