package disk

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/tchajed/marshal"
	"github.com/zeebo/blake3"

	"github.com/mit-pdos/go-nufs/common"
	"github.com/mit-pdos/go-nufs/util"
)

// A dump is a compressed, checksummed copy of a region:
//
//	header  [ magic (8) | nblocks (8) ]
//	block   [ codec (4) | length (4) | payload ] x nblocks
//	trailer [ BLAKE3 digest of the uncompressed blocks (32) ]
//
// Each block is compressed on its own and stored raw when compression
// does not make it smaller.
const (
	dumpMagic  uint64 = 0x31504d445346554e // "NUFSDMP1" little-endian
	dumpHdrSz  uint64 = 16
	blockHdrSz uint64 = 8
)

type Codec uint32

const (
	CodecNone Codec = 0
	CodecLZ4  Codec = 1
	CodecZstd Codec = 2
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint32(c))
	}
}

func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none":
		return CodecNone, nil
	case "lz4":
		return CodecLZ4, nil
	case "zstd":
		return CodecZstd, nil
	}
	return 0, fmt.Errorf("codec %q: %w", name, common.ErrInvalid)
}

// Digest is the BLAKE3 hash of a region's contents.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("zstd decoder: " + err.Error())
	}
}

// compress returns the payload for blk and the codec actually used.
func compress(blk Block, c Codec) ([]byte, Codec) {
	switch c {
	case CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(blk)))
		n, err := lz4.CompressBlock(blk, dst, nil)
		if err == nil && n > 0 && n < len(blk) {
			return dst[:n], CodecLZ4
		}
	case CodecZstd:
		dst := zstdEncoder.EncodeAll(blk, nil)
		if len(dst) < len(blk) {
			return dst, CodecZstd
		}
	}
	return blk, CodecNone
}

func decompress(payload []byte, c Codec) ([]byte, error) {
	switch c {
	case CodecNone:
		return payload, nil
	case CodecLZ4:
		dst := make([]byte, common.BlockSize)
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return nil, fmt.Errorf("lz4: %v: %w", err, common.ErrIO)
		}
		return dst[:n], nil
	case CodecZstd:
		dst, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, common.BlockSize))
		if err != nil {
			return nil, fmt.Errorf("zstd: %v: %w", err, common.ErrIO)
		}
		return dst, nil
	}
	return nil, fmt.Errorf("%v: %w", c, common.ErrIO)
}

// Sum hashes every block of r.
func Sum(r Region) (Digest, error) {
	var d Digest
	h := blake3.New()
	for a := uint64(0); a < r.Size(); a++ {
		blk, err := r.Block(a)
		if err != nil {
			return d, err
		}
		h.Write(blk)
	}
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Dump writes r to w, compressing each block with c.
func Dump(r Region, w io.Writer, c Codec) (Digest, error) {
	var d Digest
	enc := marshal.NewEnc(dumpHdrSz)
	enc.PutInt(dumpMagic)
	enc.PutInt(r.Size())
	if _, err := w.Write(enc.Finish()); err != nil {
		return d, err
	}
	h := blake3.New()
	var nbytes uint64
	for a := uint64(0); a < r.Size(); a++ {
		blk, err := r.Block(a)
		if err != nil {
			return d, err
		}
		h.Write(blk)
		payload, used := compress(blk, c)
		enc := marshal.NewEnc(blockHdrSz)
		enc.PutInt32(uint32(used))
		enc.PutInt32(uint32(len(payload)))
		if _, err := w.Write(enc.Finish()); err != nil {
			return d, err
		}
		if _, err := w.Write(payload); err != nil {
			return d, err
		}
		nbytes += blockHdrSz + uint64(len(payload))
	}
	copy(d[:], h.Sum(nil))
	if _, err := w.Write(d[:]); err != nil {
		return d, err
	}
	util.DPrintf(1, "Dump: %d blocks as %d bytes (%v) %v\n", r.Size(), nbytes, c, d)
	return d, nil
}

// Restore overwrites r with a dump read from rd. The dump must hold exactly
// r.Size() blocks. Blocks are written as they are decoded, so a dump that
// fails its checksum has already replaced the contents of r.
func Restore(rd io.Reader, r Region) (Digest, error) {
	var d Digest
	hdr := make([]byte, dumpHdrSz)
	if _, err := io.ReadFull(rd, hdr); err != nil {
		return d, fmt.Errorf("dump header: %v: %w", err, common.ErrInvalid)
	}
	dec := marshal.NewDec(hdr)
	if magic := dec.GetInt(); magic != dumpMagic {
		return d, fmt.Errorf("dump magic %#x: %w", magic, common.ErrInvalid)
	}
	if n := dec.GetInt(); n != r.Size() {
		return d, fmt.Errorf("dump has %d blocks, region %d: %w", n, r.Size(), common.ErrInvalid)
	}
	h := blake3.New()
	bhdr := make([]byte, blockHdrSz)
	for a := uint64(0); a < r.Size(); a++ {
		if _, err := io.ReadFull(rd, bhdr); err != nil {
			return d, fmt.Errorf("block %d header: %v: %w", a, err, common.ErrIO)
		}
		dec := marshal.NewDec(bhdr)
		c := Codec(dec.GetInt32())
		n := uint64(dec.GetInt32())
		if n > common.BlockSize {
			return d, fmt.Errorf("block %d payload %d bytes: %w", a, n, common.ErrIO)
		}
		payload := make([]byte, n)
		if _, err := io.ReadFull(rd, payload); err != nil {
			return d, fmt.Errorf("block %d: %v: %w", a, err, common.ErrIO)
		}
		data, err := decompress(payload, c)
		if err != nil {
			return d, err
		}
		if uint64(len(data)) != common.BlockSize {
			return d, fmt.Errorf("block %d decodes to %d bytes: %w", a, len(data), common.ErrIO)
		}
		blk, err := r.Block(a)
		if err != nil {
			return d, err
		}
		copy(blk, data)
		h.Write(data)
	}
	var want Digest
	if _, err := io.ReadFull(rd, want[:]); err != nil {
		return d, fmt.Errorf("dump trailer: %v: %w", err, common.ErrIO)
	}
	copy(d[:], h.Sum(nil))
	if d != want {
		return d, fmt.Errorf("dump digest %v, contents %v: %w", want, d, common.ErrIO)
	}
	util.DPrintf(1, "Restore: %d blocks %v\n", r.Size(), d)
	return d, r.Barrier()
}
