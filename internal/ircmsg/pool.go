package ircmsg

import (
	"bytes"

	"github.com/btnmasher/ironhall/shared/pool"
)

// bufPool mirrors the teacher's util.BufferPool (server.go's bufpool),
// generalized onto the shared/pool generic wrapper. *bytes.Buffer already
// satisfies pool.Resettable via its own Reset method.
var bufPool = pool.New[*bytes.Buffer](func() *bytes.Buffer {
	return new(bytes.Buffer)
})
