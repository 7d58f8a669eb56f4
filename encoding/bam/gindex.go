// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/sam"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

const (
	maxRecordSize = 0xffffff

	// DefaultGIndexByteInterval is the default spacing, in compressed bytes,
	// between two .gbai entries.
	DefaultGIndexByteInterval = 64 << 10
)

// GIndex is the .gbai index: a list of (RefID, Pos, Seq) -> BAM voffset
// mappings sorted by coordinate.  Unlike .bai, which can only address a
// position to within 16 kbp, .gbai entries are spaced by compressed byte
// count, so a seek lands within DefaultGIndexByteInterval bytes of any
// position regardless of coverage.
//
// On disk, the index is gzip-compressed.  The uncompressed stream starts with
// the 16 bytes gbaiMagic ("GBAI\x01" plus 11 fixed random bytes), followed by
// entries of four little-endian values: int32 RefID (-1 for the unmapped
// section), int32 Pos, uint32 Seq (the ordinal of the record among those at
// the same (RefID, Pos)), and uint64 VOffset.
//
// The first record of every reference present in the BAM file gets an entry,
// so the first entry always points at the first record.
type GIndex []GIndexEntry

var gbaiMagic = []byte{
	'G', 'B', 'A', 'I', 0x01, 0xf1, 0x78, 0x5c,
	0x7b, 0xcb, 0xc1, 0xba, 0x08, 0x23, 0xb1, 0x19,
}

// GIndexEntry is one entry of the .gbai index.
type GIndexEntry struct {
	RefID   int32
	Pos     int32
	Seq     uint32
	VOffset uint64
}

// less orders entries by (RefID, Pos, Seq), with the unmapped RefID -1 last.
func (e *GIndexEntry) less(o *GIndexEntry) bool {
	if e.RefID != o.RefID {
		if e.RefID < 0 || o.RefID < 0 {
			return o.RefID < 0
		}
		return e.RefID < o.RefID
	}
	if e.Pos != o.Pos {
		return e.Pos < o.Pos
	}
	return e.Seq < o.Seq
}

// RecordOffset returns a voffset from which reading forward reaches every
// record at or after (refID, pos).  Records before the target may be read
// first and must be skipped by the caller.
//
// REQUIRES: idx is nonempty.
func (idx GIndex) RecordOffset(refID, pos int32) bgzf.Offset {
	target := GIndexEntry{RefID: refID, Pos: pos}
	i := sort.Search(len(idx), func(i int) bool { return !idx[i].less(&target) })
	// An entry with Seq > 0 is not the first record at pos; earlier records
	// at the same position precede it.
	if i < len(idx) && idx[i].RefID == refID && idx[i].Pos == pos && idx[i].Seq == 0 {
		return ToBGZFOffset(idx[i].VOffset)
	}
	if i > 0 {
		i--
	}
	return ToBGZFOffset(idx[i].VOffset)
}

// ToBGZFOffset takes a uint64 voffset and returns a bgzf.Offset.
func ToBGZFOffset(voffset uint64) bgzf.Offset {
	return bgzf.Offset{File: int64(voffset >> 16), Block: uint16(voffset & 0xffff)}
}

func toVOffset(offset bgzf.Offset) uint64 {
	return uint64(offset.File)<<16 | uint64(offset.Block)
}

// WriteGIndex reads a coordinate-sorted BAM file from r and writes its .gbai
// index to w.  Entries are spaced roughly byteInterval compressed bytes apart.
// At most one entry is written per (RefID, Pos), so Seq is always zero.
func WriteGIndex(w io.Writer, r io.Reader, byteInterval, parallelism int) error {
	bgzfReader, err := bgzf.NewReader(r, parallelism)
	if err != nil {
		return err
	}
	header, err := sam.NewHeader(nil, nil)
	if err != nil {
		return err
	}
	if err := header.DecodeBinary(bgzfReader); err != nil {
		return errors.Wrap(err, "gbai: decode bam header")
	}
	gz := gzip.NewWriter(w)
	if _, err := gz.Write(gbaiMagic); err != nil {
		return err
	}

	var (
		prev     GIndexEntry
		prevFile int64
		first    = true
		sizeBuf  = make([]byte, 4)
		buf      = make([]byte, maxRecordSize)
	)
	for {
		if _, err := io.ReadFull(bgzfReader, sizeBuf); err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		voffset := bgzfReader.LastChunk().Begin
		size := int(binary.LittleEndian.Uint32(sizeBuf))
		if size > maxRecordSize {
			return errors.Errorf("gbai: bam record size %d exceeds max", size)
		}
		if _, err := io.ReadFull(bgzfReader, buf[:size]); err != nil {
			return errors.Wrap(err, "gbai: truncated bam record")
		}
		entry := GIndexEntry{
			RefID:   int32(binary.LittleEndian.Uint32(buf[0:4])),
			Pos:     int32(binary.LittleEndian.Uint32(buf[4:8])),
			VOffset: toVOffset(voffset),
		}
		newRef := first || entry.RefID != prev.RefID
		newPos := newRef || entry.Pos != prev.Pos
		if newRef || (newPos && voffset.File-prevFile >= int64(byteInterval)) {
			if err := binary.Write(gz, binary.LittleEndian, &entry); err != nil {
				return err
			}
			prevFile = voffset.File
		}
		prev = entry
		first = false
	}
	return gz.Close()
}

// ReadGIndex parses a .gbai file from r.  The index of a BAM file without
// records is empty.
func ReadGIndex(r io.Reader) (gindex GIndex, err error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "gbai")
	}
	defer func() {
		if cerr := gz.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	magic := make([]byte, len(gbaiMagic))
	if _, err = io.ReadFull(gz, magic); err != nil {
		return nil, errors.Wrap(err, "gbai: read magic")
	}
	if !bytes.Equal(gbaiMagic, magic) {
		return nil, errors.Errorf("gbai: unexpected magic %v", magic)
	}
	for {
		var entry GIndexEntry
		if err = binary.Read(gz, binary.LittleEndian, &entry); err == io.EOF {
			err = nil
			break
		} else if err != nil {
			return nil, errors.Wrap(err, "gbai: read entry")
		}
		if n := len(gindex); n > 0 {
			prev := gindex[n-1]
			if !prev.less(&entry) {
				return nil, errors.Errorf("gbai: positions out of order, %+v then %+v", prev, entry)
			}
			if prev.VOffset >= entry.VOffset {
				return nil, errors.Errorf("gbai: voffsets out of order, %+v then %+v", prev, entry)
			}
		}
		gindex = append(gindex, entry)
	}
	return gindex, nil
}
