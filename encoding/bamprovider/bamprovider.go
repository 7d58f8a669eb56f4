// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"io"
	"strings"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	gbam "github.com/grailbio/bamdepth/encoding/bam"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/bgzf/index"
	"github.com/grailbio/hts/sam"
	"v.io/x/lib/vlog"
)

// BAMProvider implements Provider for BAM files.  Both the BAM and the index
// pathnames may be anything grailbio/base/file can open.
type BAMProvider struct {
	// Path of the *.bam file. Must be nonempty.
	Path string
	// Index is the pathname of the index file. If "", Path + ".bai".
	Index string
	err   errors.Once

	mu      sync.Mutex
	nActive int
	header  *sam.Header
}

type bamIterator struct {
	provider *BAMProvider
	in       file.File
	reader   *bam.Reader
	shard    gbam.Shard

	err  error
	rec  *sam.Record
	done bool
}

func (b *BAMProvider) indexPath() string {
	if b.Index == "" {
		return b.Path + ".bai"
	}
	return b.Index
}

// GetHeader implements the Provider interface.
func (b *BAMProvider) GetHeader() (*sam.Header, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.header != nil {
		return b.header, nil
	}

	ctx := vcontext.Background()
	in, err := file.Open(ctx, b.Path)
	if err != nil {
		b.err.Set(err)
		return nil, err
	}
	defer in.Close(ctx) // nolint: errcheck
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		err = errors.E(err, b.Path)
		b.err.Set(err)
		return nil, err
	}
	defer reader.Close() // nolint: errcheck
	b.header = reader.Header()
	return b.header, nil
}

// Close implements the Provider interface.
func (b *BAMProvider) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %s", b.nActive, b.Path)
	}
	return b.err.Err()
}

// NewIterator implements the Provider interface.
func (b *BAMProvider) NewIterator(shard gbam.Shard) Iterator {
	if !shard.IsUniversal() && shard.StartRef.ID() != shard.EndRef.ID() {
		return NewErrorIterator(errors.E(errors.Invalid, "bamprovider: shard must cover a single reference:", shard.String()))
	}
	b.mu.Lock()
	b.nActive++
	b.mu.Unlock()

	iter := &bamIterator{provider: b, shard: shard}
	ctx := vcontext.Background()
	if iter.in, iter.err = file.Open(ctx, b.Path); iter.err != nil {
		return iter
	}
	if iter.reader, iter.err = bam.NewReader(iter.in.Reader(ctx), 1); iter.err != nil {
		iter.err = errors.E(iter.err, b.Path)
		return iter
	}
	if shard.IsUniversal() {
		return iter
	}
	offset, found, err := b.seekOffset(shard)
	switch {
	case err != nil:
		iter.err = err
	case !found:
		iter.done = true
	case offset != nil:
		iter.err = iter.reader.Seek(*offset)
	}
	return iter
}

// seekOffset finds the file offset at or before the first record that overlaps
// shard.  It returns found=false if the index shows no such record, and a nil
// offset if there is no usable index, in which case the iterator scans from
// the first record.
func (b *BAMProvider) seekOffset(shard gbam.Shard) (*bgzf.Offset, bool, error) {
	ctx := vcontext.Background()
	path := b.indexPath()
	in, err := file.Open(ctx, path)
	if err != nil {
		if b.Index != "" {
			return nil, false, err
		}
		vlog.VI(1).Infof("%s: %v", path, err)
		log.Printf("%s: no index found, scanning the whole file for %s", b.Path, shard)
		return nil, true, nil
	}
	defer in.Close(ctx) // nolint: errcheck

	if strings.HasSuffix(path, ".gbai") {
		gindex, err := gbam.ReadGIndex(in.Reader(ctx))
		if err != nil {
			return nil, false, errors.E(err, path)
		}
		if len(gindex) == 0 {
			return nil, false, nil
		}
		offset := gindex.RecordOffset(int32(shard.StartRef.ID()), int32(shard.PaddedStart()))
		return &offset, true, nil
	}

	idx, err := bam.ReadIndex(in.Reader(ctx))
	if err != nil {
		return nil, false, errors.E(err, path)
	}
	chunks, err := idx.Chunks(shard.StartRef, shard.Start, shard.End)
	if err == index.ErrInvalid || (err == nil && len(chunks) == 0) {
		// No reads for this interval.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.E(err, path)
	}
	return &chunks[0].Begin, true, nil
}

// Scan implements the Iterator interface.
func (i *bamIterator) Scan() bool {
	if i.err != nil || i.done {
		return false
	}
	for {
		i.rec, i.err = i.reader.Read()
		if i.err != nil {
			return false
		}
		switch i.shard.Locate(i.rec) {
		case -1:
			continue
		case 1:
			i.done = true
			return false
		}
		return true
	}
}

// Record implements the Iterator interface.
func (i *bamIterator) Record() *sam.Record {
	return i.rec
}

// Err implements the Iterator interface.
func (i *bamIterator) Err() error {
	if i.err == io.EOF {
		return nil
	}
	return i.err
}

// Close implements the Iterator interface.
func (i *bamIterator) Close() error {
	if i.reader != nil {
		if err := i.reader.Close(); err != nil && i.err == nil {
			i.err = err
		}
		i.reader = nil
	}
	if i.in != nil {
		if err := i.in.Close(vcontext.Background()); err != nil && i.err == nil {
			i.err = err
		}
		i.in = nil
	}
	b := i.provider
	b.err.Set(i.Err())
	b.mu.Lock()
	b.nActive--
	b.mu.Unlock()
	return i.Err()
}
