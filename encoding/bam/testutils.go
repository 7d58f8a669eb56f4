// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"context"
	"io"

	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
)

// NewRecord creates a mapped record for tests.  The read sequence is all 'A'
// with the query length of cigar.  If qual is nil, every base gets quality
// 30; otherwise qual must have the query length.
func NewRecord(name string, ref *sam.Reference, pos int, mapq byte, flags sam.Flags, cigar sam.Cigar, qual []byte) *sam.Record {
	_, qlen := cigar.Lengths()
	if qual == nil {
		qual = make([]byte, qlen)
		for i := range qual {
			qual[i] = 30
		}
	}
	if len(qual) != qlen {
		panic("qual must have the cigar query length")
	}
	seq := make([]byte, qlen)
	for i := range seq {
		seq[i] = 'A'
	}
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MapQ = mapq
	r.Flags = flags
	r.Cigar = cigar
	r.MateRef = nil
	r.MatePos = -1
	r.Seq = sam.NewSeq(seq)
	r.Qual = qual
	return r
}

// WriteBAM writes recs, which must be coordinate-sorted, to a BAM file at
// path.
func WriteBAM(ctx context.Context, path string, header *sam.Header, recs []*sam.Record) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	w, err := bam.NewWriter(out.Writer(ctx), header, 1)
	if err != nil {
		return err
	}
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			return err
		}
	}
	return w.Close()
}

// WriteBAI reads the BAM file at bamPath and writes its .bai index to
// indexPath.
func WriteBAI(ctx context.Context, bamPath, indexPath string) (err error) {
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	reader, err := bam.NewReader(in.Reader(ctx), 1)
	if err != nil {
		return err
	}
	defer reader.Close() // nolint: errcheck
	var index bam.Index
	for {
		r, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := index.Add(r, reader.LastChunk()); err != nil {
			return err
		}
	}
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return bam.WriteIndex(out.Writer(ctx), &index)
}

// WriteGIndexFile reads the BAM file at bamPath and writes its .gbai index to
// indexPath.
func WriteGIndexFile(ctx context.Context, bamPath, indexPath string, byteInterval int) (err error) {
	in, err := file.Open(ctx, bamPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, in, &err)
	out, err := file.Create(ctx, indexPath)
	if err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, out, &err)
	return WriteGIndex(out.Writer(ctx), in.Reader(ctx), byteInterval, 1)
}
