//go:build !unix

package server

import (
	"errors"
	"net"
)

func listenConfig() net.ListenConfig { return net.ListenConfig{} }

func isTransientAccept(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
