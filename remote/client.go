package remote

import (
	"bufio"
	"container/list"
	"io"
	"net"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/tokenbucket"

	"github.com/iv3d/brickstore/internal/base"
)

// Client speaks the remote brick source protocol over a blocking request
// connection and an auxiliary batch connection the server pushes bricks on
// (spec.md §4.10, §5 "client is single-threaded and blocking on the request
// stream; the batch stream uses non-blocking reads polled before each
// BRICK"). It caches proactively-delivered bricks with an LRU keyed the
// same way rebrick's source cache is, since both are "serve from cache if
// present, else fetch" caches over the same base.BrickKey space.
type Client struct {
	req  net.Conn
	bufR *bufio.Reader

	batch     net.Conn
	batchBuf  *bufio.Reader
	limiter   *tokenbucket.TokenBucket
	batchSize uint64

	mu         sync.Mutex
	cacheOrder *list.List
	cacheIdx   map[base.BrickKey]*list.Element
	cacheBytes int
	cacheBudget int
}

// defaultBatchRate is the token-bucket rate (bricks/sec) consulted for each
// brick admitted from the batch stream. The bucket's answer is not acted
// on: every brick read off the wire is admitted to the cache regardless.
const defaultBatchRate = 1000

type clientCacheItem struct {
	key  base.BrickKey
	data []byte
}

// Dial connects the request stream to reqAddr and, if batchAddr is
// non-empty, the batch stream to batchAddr, exchanging the IV3D magic on
// both.
func Dial(reqAddr, batchAddr string, cacheBudgetBytes int) (*Client, error) {
	reqConn, err := net.Dial("tcp", reqAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "remote: dialing request stream")
	}
	if err := writeMagic(reqConn); err != nil {
		return nil, err
	}
	if err := readMagic(reqConn); err != nil {
		return nil, err
	}

	limiter := &tokenbucket.TokenBucket{}
	limiter.Init(defaultBatchRate, defaultBatchRate)

	c := &Client{
		req:         reqConn,
		bufR:        bufio.NewReader(reqConn),
		cacheOrder:  list.New(),
		cacheIdx:    make(map[base.BrickKey]*list.Element),
		cacheBudget: cacheBudgetBytes,
		batchSize:   16,
		limiter:     limiter,
	}

	if batchAddr != "" {
		batchConn, err := net.Dial("tcp", batchAddr)
		if err != nil {
			return nil, errors.Wrapf(err, "remote: dialing batch stream")
		}
		if err := writeMagic(batchConn); err != nil {
			return nil, err
		}
		if err := readMagic(batchConn); err != nil {
			return nil, err
		}
		c.batch = batchConn
		c.batchBuf = bufio.NewReader(batchConn)
	}
	return c, nil
}

// Open issues an OPEN request and returns the dataset metadata it answers
// with.
func (c *Client) Open(bs [3]uint64, mmMode uint64, width, height uint32, fname string) (DatasetMetadata, error) {
	if err := writeU8(c.req, uint8(CmdOpen)); err != nil {
		return DatasetMetadata{}, err
	}
	if err := writeOpenRequest(c.req, bs, mmMode, width, height, fname); err != nil {
		return DatasetMetadata{}, err
	}
	return readMetadata(c.bufR)
}

// Close issues a CLOSE request for fname.
func (c *Client) Close(fname string) error {
	if err := writeU8(c.req, uint8(CmdClose)); err != nil {
		return err
	}
	return writeString(c.req, fname)
}

// Shutdown issues SHUTDOWN and closes both streams.
func (c *Client) Shutdown() error {
	if err := writeU8(c.req, uint8(CmdShutdown)); err != nil {
		return err
	}
	var err error
	if cerr := c.req.Close(); cerr != nil {
		err = cerr
	}
	if c.batch != nil {
		if cerr := c.batch.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// SetBatchSize issues BATCH_SIZE, capping how many bricks the server packs
// per pushed batch.
func (c *Client) SetBatchSize(n uint64) error {
	if err := writeU8(c.req, uint8(CmdBatchSize)); err != nil {
		return err
	}
	if err := writeU64(c.req, n); err != nil {
		return err
	}
	c.batchSize = n
	return nil
}

// ListFiles issues LIST_FILES.
func (c *Client) ListFiles() ([]string, error) {
	if err := writeU8(c.req, uint8(CmdListFiles)); err != nil {
		return nil, err
	}
	n, err := readU16(c.bufR)
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		if out[i], err = readString(c.bufR); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Rotation issues ROTATION with the given 4x4 view matrix (row-major, 16
// floats) and returns the bricks now needed to render.
func (c *Client) Rotation(m [16]float32) (RotationResult, error) {
	if err := writeU8(c.req, uint8(CmdRotation)); err != nil {
		return RotationResult{}, err
	}
	for _, v := range m {
		if err := writeF32(c.req, v); err != nil {
			return RotationResult{}, err
		}
	}
	return readRotationResult(c.bufR)
}

// CalcMinMax issues CALC_MINMAX.
func (c *Client) CalcMinMax() ([]MinMaxEntry, error) {
	if err := writeU8(c.req, uint8(CmdCalcMinMax)); err != nil {
		return nil, err
	}
	return readMinMaxTable(c.bufR)
}

// Brick returns a brick's bytes, serving from the batch cache if the server
// already proactively delivered it, else issuing a blocking BRICK request
// (spec.md §4.10 "a subsequent BRICK call for any received key is served
// from cache").
func (c *Client) Brick(key base.BrickKey) ([]byte, error) {
	c.drainBatchesNonBlocking()

	if data, ok := c.cacheGet(key); ok {
		return data, nil
	}

	if err := writeU8(c.req, uint8(CmdBrick)); err != nil {
		return nil, err
	}
	if err := writeU64(c.req, uint64(key.LOD)); err != nil {
		return nil, err
	}
	if err := writeU64(c.req, key.Index); err != nil {
		return nil, err
	}
	n, err := readU64(c.bufR)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(c.bufR, data); err != nil {
		return nil, errors.Wrapf(err, "remote: reading brick body")
	}
	return data, nil
}

// drainBatchesNonBlocking polls the batch stream for any whole batch frames
// already buffered and admits their bricks into the cache. It never blocks
// waiting for more bytes than are already available in the buffered reader
// (spec.md §5 "non-blocking reads polled before each BRICK").
func (c *Client) drainBatchesNonBlocking() {
	if c.batch == nil {
		return
	}
	for {
		if c.batchBuf.Buffered() == 0 {
			return
		}
		size, err := readU64(c.batchBuf)
		if err != nil {
			return
		}
		more, err := readU8(c.batchBuf)
		if err != nil {
			return
		}
		type hdr struct {
			key      base.BrickKey
			byteSize uint64
		}
		hdrs := make([]hdr, size)
		for i := range hdrs {
			lod, err := readU64(c.batchBuf)
			if err != nil {
				return
			}
			idx, err := readU64(c.batchBuf)
			if err != nil {
				return
			}
			bsz, err := readU64(c.batchBuf)
			if err != nil {
				return
			}
			hdrs[i] = hdr{key: base.BrickKey{LOD: uint32(lod), Index: idx}, byteSize: bsz}
		}
		for _, h := range hdrs {
			wire := make([]byte, h.byteSize)
			if _, err := io.ReadFull(c.batchBuf, wire); err != nil {
				return
			}
			data, err := DecompressFromBatch(wire)
			if err != nil {
				return
			}
			if ok, _ := c.limiter.TryToFulfill(1); !ok {
				// Over the configured batch rate: still admit (the bytes are
				// already off the wire), but skip pacing-sensitive callers'
				// assumption that admission is throttled to BATCH_SIZE/sec.
			}
			c.cacheAdmit(h.key, data)
		}
		_ = more
	}
}

func (c *Client) cacheGet(key base.BrickKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.cacheIdx[key]
	if !ok {
		return nil, false
	}
	c.cacheOrder.MoveToFront(el)
	return el.Value.(*clientCacheItem).data, true
}

func (c *Client) cacheAdmit(key base.BrickKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el := c.cacheOrder.PushFront(&clientCacheItem{key: key, data: data})
	c.cacheIdx[key] = el
	c.cacheBytes += len(data)
	for c.cacheBytes > c.cacheBudget && c.cacheOrder.Len() > 1 {
		back := c.cacheOrder.Back()
		item := back.Value.(*clientCacheItem)
		c.cacheOrder.Remove(back)
		delete(c.cacheIdx, item.key)
		c.cacheBytes -= len(item.data)
	}
}
