// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam

import (
	"fmt"
	"math"

	"github.com/grailbio/hts/sam"
)

// DefaultPadding is the default Shard.Padding.  It bounds the reference span
// of any read the caller expects to see, which is far above typical short-read
// alignments.
const DefaultPadding = 64 << 10

// Shard represents a genomic interval to read. An iterator for a shard yields
// the records whose alignment overlaps it.
//
// A shard either covers [Start, End) of a single reference (StartRef ==
// EndRef), or is the universal shard created by UniversalShard, which has a
// nil EndRef and covers every record in the file.
//
// Padding must be >= 0.  It is the distance before Start at which an index
// lookup begins, so a read that starts up to Padding bases before Start and
// extends into the shard is still found.  The .bai index tracks overlapping
// reads itself and ignores Padding; the .gbai index only knows start positions
// and relies on it.
type Shard struct {
	StartRef *sam.Reference
	EndRef   *sam.Reference
	Start    int
	End      int

	Padding int
}

// UniversalShard creates a Shard that covers the entire file.
func UniversalShard(header *sam.Header) Shard {
	var startRef *sam.Reference
	if len(header.Refs()) > 0 {
		startRef = header.Refs()[0]
	}
	return Shard{
		StartRef: startRef,
		EndRef:   nil,
		Start:    0,
		End:      math.MaxInt32,
	}
}

// NewRefShard creates a Shard covering [start, end) of ref, with
// DefaultPadding.  end is clamped to the reference length.
func NewRefShard(ref *sam.Reference, start, end int) Shard {
	if end > ref.Len() {
		end = ref.Len()
	}
	return Shard{
		StartRef: ref,
		EndRef:   ref,
		Start:    start,
		End:      end,
		Padding:  DefaultPadding,
	}
}

// IsUniversal returns true if s was created by UniversalShard.
func (s *Shard) IsUniversal() bool {
	return s.EndRef == nil
}

// PaddedStart computes the effective start of the range to seek to, including
// padding.
func (s *Shard) PaddedStart() int {
	if s.Start < s.Padding {
		return 0
	}
	return s.Start - s.Padding
}

// Locate reports where r lies relative to s in coordinate order: -1 if r ends
// before the shard (so later records may still overlap), 0 if r overlaps the
// shard, and 1 if r starts at or after the end of the shard (so no later
// record of a sorted file can overlap).
func (s *Shard) Locate(r *sam.Record) int {
	if s.IsUniversal() {
		return 0
	}
	refID := r.Ref.ID()
	switch {
	case refID < 0 || refID > s.EndRef.ID():
		// Unmapped records sort last.
		return 1
	case refID < s.StartRef.ID():
		return -1
	case r.Pos >= s.End:
		return 1
	case r.End() <= s.Start:
		return -1
	}
	return 0
}

// String returns a human-readable description of s.
func (s Shard) String() string {
	if s.IsUniversal() {
		return "*"
	}
	return fmt.Sprintf("%s:%d-%d", s.StartRef.Name(), s.Start, s.End)
}
