package remote

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"

	"github.com/iv3d/brickstore/internal/base"
	"github.com/iv3d/brickstore/internal/debug"
)

const debugChannel = "remote"

func init() {
	debug.Register(debugChannel)
}

// DataSource is what the server needs from an open dataset to answer the
// request stream (spec.md §4.10 request table). Production callers back
// this with a *dataset.Dataset; tests can supply a fake.
type DataSource interface {
	Metadata() DatasetMetadata
	GetBrick(key base.BrickKey) ([]byte, error)
	CalcMinMax() ([]MinMaxEntry, error)
	Rotate(m [16]float32) RotationResult
}

// Opener resolves a filename from an OPEN request to a DataSource.
type Opener func(fname string) (DataSource, error)

// Server answers request streams and pushes batches on paired batch
// streams. Serve shares one Server across every accepted connection, each
// handled on its own goroutine, so the open-file table and the batch size
// are shared by all of them (spec.md §5 "one I/O thread per stream
// cooperatively").
type Server struct {
	open  Opener
	mu    sync.Mutex
	files map[string]DataSource

	batchSize  uint64
	batchConns chan net.Conn
	Logger     debug.Logger
}

// NewServer builds a Server that resolves OPEN requests via open.
func NewServer(open Opener) *Server {
	return &Server{
		open:       open,
		files:      make(map[string]DataSource),
		batchSize:  16,
		batchConns: make(chan net.Conn),
		Logger:     debug.NoopLogger,
	}
}

// acceptBatchConns accepts connections on ln forever, exchanges the IV3D
// magic, and hands each off to whichever request goroutine is waiting for a
// pairing (see listen.go's Serve). It returns when ln is closed.
func (s *Server) acceptBatchConns(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		if err := readMagic(conn); err != nil {
			conn.Close()
			continue
		}
		if err := writeMagic(conn); err != nil {
			conn.Close()
			continue
		}
		s.batchConns <- conn
	}
}

// takeBatchConn waits up to batchPairTimeout for a paired batch connection,
// returning nil (push disabled for this request connection) on timeout.
func (s *Server) takeBatchConn() net.Conn {
	select {
	case c := <-s.batchConns:
		return c
	case <-time.After(batchPairTimeout):
		return nil
	}
}

func (s *Server) logf(class debug.Class, format string, args ...interface{}) {
	if s.Logger != nil && debug.Enabled(debugChannel, class) {
		s.Logger.Logf(debugChannel, class, format, args...)
	}
}

// ServeRequest handles the request/response stream until the peer sends
// SHUTDOWN or the connection closes. batch, if non-nil, is used to push
// brick batches proactively after a successful OPEN (spec.md §4.10 "Batch
// stream").
func (s *Server) ServeRequest(conn net.Conn, batch io.Writer) error {
	if err := readMagic(conn); err != nil {
		return err
	}
	if err := writeMagic(conn); err != nil {
		return err
	}

	for {
		cmd, err := readU8(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		switch Command(cmd) {
		case CmdOpen:
			if err := s.handleOpen(conn, batch); err != nil {
				return err
			}
		case CmdClose:
			if err := s.handleClose(conn); err != nil {
				return err
			}
		case CmdBrick:
			if err := s.handleBrick(conn); err != nil {
				return err
			}
		case CmdListFiles:
			if err := s.handleListFiles(conn); err != nil {
				return err
			}
		case CmdShutdown:
			return nil
		case CmdRotation:
			if err := s.handleRotation(conn); err != nil {
				return err
			}
		case CmdBatchSize:
			if err := s.handleBatchSize(conn); err != nil {
				return err
			}
		case CmdCalcMinMax:
			if err := s.handleCalcMinMax(conn); err != nil {
				return err
			}
		default:
			return errors.Wrapf(errUnknownCommand, "code %d", cmd)
		}
	}
}

func (s *Server) handleOpen(conn net.Conn, batch io.Writer) error {
	bs, mmMode, width, height, fname, err := readOpenRequest(conn)
	if err != nil {
		return err
	}
	_ = bs
	_ = mmMode
	_ = width
	_ = height
	ds, err := s.open(fname)
	if err != nil {
		return base.OpenError(base.ErrOpenFailed, fname, "remote: server could not open dataset: %v", err)
	}
	s.mu.Lock()
	s.files[fname] = ds
	s.mu.Unlock()
	s.logf(debug.ClassTrace, "opened %s", fname)
	if err := writeMetadata(conn, ds.Metadata()); err != nil {
		return err
	}
	if batch == nil {
		return nil
	}
	return s.pushInitialBatches(batch, ds)
}

// pushInitialBatches proactively pushes every brick ds reports at OPEN time,
// chunked at the client's configured BATCH_SIZE (spec.md §4.10 "Batch
// stream"). It's the server half of the push the client's
// drainBatchesNonBlocking polls for.
func (s *Server) pushInitialBatches(batch io.Writer, ds DataSource) error {
	bricks := ds.Metadata().Bricks
	s.mu.Lock()
	chunk := int(s.batchSize)
	s.mu.Unlock()
	if chunk <= 0 {
		return nil
	}
	for start := 0; start < len(bricks); start += chunk {
		end := start + chunk
		if end > len(bricks) {
			end = len(bricks)
		}
		items := make([]BatchItem, 0, end-start)
		for _, key := range bricks[start:end] {
			data, err := ds.GetBrick(key)
			if err != nil {
				return err
			}
			items = append(items, BatchItem{Key: key, Data: data})
		}
		if err := PushBatch(batch, items, end < len(bricks)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleClose(conn net.Conn) error {
	fname, err := readString(conn)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.files, fname)
	s.mu.Unlock()
	return nil
}

func (s *Server) lookupAny() (DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ds := range s.files {
		return ds, nil
	}
	return nil, base.ConfigInvalidf("remote: no dataset open on this connection")
}

func (s *Server) handleBrick(conn net.Conn) error {
	lod, err := readU64(conn)
	if err != nil {
		return err
	}
	idx, err := readU64(conn)
	if err != nil {
		return err
	}
	ds, err := s.lookupAny()
	if err != nil {
		return err
	}
	data, err := ds.GetBrick(base.BrickKey{LOD: uint32(lod), Index: idx})
	if err != nil {
		return err
	}
	if err := writeU64(conn, uint64(len(data))); err != nil {
		return err
	}
	_, err = conn.Write(data)
	return errors.Wrapf(err, "remote: writing brick body")
}

func (s *Server) handleListFiles(conn net.Conn) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.files))
	for n := range s.files {
		names = append(names, n)
	}
	s.mu.Unlock()
	if err := writeU16(conn, uint16(len(names))); err != nil {
		return err
	}
	for _, n := range names {
		if err := writeString(conn, n); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) handleRotation(conn net.Conn) error {
	var m [16]float32
	for i := range m {
		v, err := readF32(conn)
		if err != nil {
			return err
		}
		m[i] = v
	}
	ds, err := s.lookupAny()
	if err != nil {
		return err
	}
	return writeRotationResult(conn, ds.Rotate(m))
}

func (s *Server) handleBatchSize(conn net.Conn) error {
	v, err := readU64(conn)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.batchSize = v
	s.mu.Unlock()
	return nil
}

func (s *Server) handleCalcMinMax(conn net.Conn) error {
	ds, err := s.lookupAny()
	if err != nil {
		return err
	}
	entries, err := ds.CalcMinMax()
	if err != nil {
		return err
	}
	return writeMinMaxTable(conn, entries)
}

// BatchItem is one brick queued for proactive delivery on the batch stream.
type BatchItem struct {
	Key  base.BrickKey
	Data []byte
}

// PushBatch writes one batch frame to w: spec.md §4.10 "u64 batch_size; u8
// more_coming; then batch_size x (lod, index, byte_size); then batch_size x
// raw brick bytes". Bricks within a batch are written in items order, which
// is the order guarantee spec.md §5 makes ("within a batch bricks arrive in
// the order declared"); ordering across batches is left to the caller.
//
// Each brick body is snappy-compressed before it goes on the wire
// (CompressForBatch), the same spill codec convert/cache.go uses for
// evicted write-back entries; byte_size is therefore the compressed length,
// and the client's drainBatchesNonBlocking decompresses on receipt.
func PushBatch(w io.Writer, items []BatchItem, moreComing bool) error {
	if err := writeU64(w, uint64(len(items))); err != nil {
		return err
	}
	more := uint8(0)
	if moreComing {
		more = 1
	}
	if err := writeU8(w, more); err != nil {
		return err
	}
	compressed := make([][]byte, len(items))
	for i, it := range items {
		compressed[i] = CompressForBatch(it.Data)
		if err := writeU64(w, uint64(it.Key.LOD)); err != nil {
			return err
		}
		if err := writeU64(w, it.Key.Index); err != nil {
			return err
		}
		if err := writeU64(w, uint64(len(compressed[i]))); err != nil {
			return err
		}
	}
	for _, c := range compressed {
		if _, err := w.Write(c); err != nil {
			return errors.Wrapf(err, "remote: writing batch brick body")
		}
	}
	return nil
}

// CompressForBatch snappy-compresses a brick body before queuing it for
// batch delivery, the same spill codec convert/cache.go uses for evicted
// write-back entries — reused here to keep proactive-push bandwidth down.
func CompressForBatch(data []byte) []byte {
	return snappy.Encode(nil, data)
}

func DecompressFromBatch(compressed []byte) ([]byte, error) {
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, errors.Wrapf(err, "remote: decompressing batch brick body")
	}
	return data, nil
}
