package remote

import (
	"net"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/internal/debug"
)

// batchPairTimeout bounds how long a request connection waits for its
// companion batch connection to arrive on the batch listener before giving
// up and serving that connection with pushes disabled.
const batchPairTimeout = 5 * time.Second

// Serve accepts connections on ln forever, handling each on its own
// goroutine via ServeRequest. It returns when ln is closed. If batchLn is
// non-nil, a companion goroutine accepts the paired batch connections a
// client opens right after its request connection (spec.md §4.10, §5:
// client dials request then batch, in that order), and each request
// goroutine waits up to batchPairTimeout for its match before falling back
// to push-disabled service.
func Serve(ln net.Listener, batchLn net.Listener, s *Server) error {
	if batchLn != nil {
		go s.acceptBatchConns(batchLn)
	}
	for {
		conn, err := ln.Accept()
		if err != nil {
			return errors.Wrapf(err, "remote: accept")
		}
		go func() {
			defer conn.Close()
			var batch net.Conn
			if batchLn != nil {
				batch = s.takeBatchConn()
				if batch != nil {
					defer batch.Close()
				}
			}
			if err := s.ServeRequest(conn, batch); err != nil {
				s.logf(debug.ClassErr, "connection %s: %v", conn.RemoteAddr(), err)
			}
		}()
	}
}
