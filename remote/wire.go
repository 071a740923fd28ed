// Package remote implements the remote brick source of spec.md §4.10: a
// client that speaks to a server over two ordered byte streams, one for
// blocking request/response exchanges and one for the server's proactive
// batch delivery of bricks. Framing follows container/header.go's own
// fixed-width little-endian convention, generalized here to a socket
// instead of a file.
package remote

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/iv3d/brickstore/internal/base"
)

// Command codes for the request/response stream (spec.md §4.10 table).
type Command uint8

const (
	CmdOpen Command = 1 + iota
	CmdClose
	CmdBrick
	CmdListFiles
	CmdShutdown
	CmdRotation
	CmdBatchSize
	CmdCalcMinMax
)

// magic is exchanged by both sides immediately after connecting, followed
// by a one-byte endian probe (spec.md §4.10 "Framing conventions"). The
// wire is little-endian regardless of host; the probe lets either side
// detect a misbehaving peer early instead of failing on the first
// malformed length prefix.
var magic = [4]byte{'I', 'V', '3', 'D'}

const endianProbe = 1 // 1 == little-endian, the only value this implementation emits or accepts

func writeMagic(w io.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return errors.Wrapf(err, "remote: writing magic")
	}
	if _, err := w.Write([]byte{endianProbe}); err != nil {
		return errors.Wrapf(err, "remote: writing endian probe")
	}
	return nil
}

func readMagic(r io.Reader) error {
	var buf [5]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return errors.Wrapf(err, "remote: reading magic")
	}
	if buf[0] != magic[0] || buf[1] != magic[1] || buf[2] != magic[2] || buf[3] != magic[3] {
		return base.FormatInvalidf("remote: bad magic %q", buf[:4])
	}
	if buf[4] != endianProbe {
		return base.Unsupportedf("remote: peer endian probe %d unsupported", buf[4])
	}
	return nil
}

func writeU8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return errors.Wrapf(err, "remote: writing u8")
}

func readU8(r io.Reader) (uint8, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "remote: reading u8")
	}
	return buf[0], nil
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrapf(err, "remote: writing u16")
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "remote: reading u16")
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrapf(err, "remote: writing u32")
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "remote: reading u32")
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return errors.Wrapf(err, "remote: writing u64")
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, errors.Wrapf(err, "remote: reading u64")
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeF32(w io.Writer, v float32) error {
	return writeU32(w, math.Float32bits(v))
}

func readF32(r io.Reader) (float32, error) {
	u, err := readU32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(u), nil
}

func writeF64(w io.Writer, v float64) error {
	return writeU64(w, math.Float64bits(v))
}

func readF64(r io.Reader) (float64, error) {
	u, err := readU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > 0xFFFF {
		return base.ConfigInvalidf("remote: string %q too long for u16 length prefix", s)
	}
	if err := writeU16(w, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return errors.Wrapf(err, "remote: writing string body")
}

func readString(r io.Reader) (string, error) {
	n, err := readU16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Wrapf(err, "remote: reading string body")
	}
	return string(buf), nil
}
