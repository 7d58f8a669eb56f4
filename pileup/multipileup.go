// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pileup

import (
	"github.com/biogo/store/llrb"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bamdepth/encoding/bamprovider"
	"github.com/grailbio/hts/sam"
)

// Opts controls which reads enter a MultiPileup.
type Opts struct {
	// FlagExclude drops reads with any of these flags set.
	FlagExclude sam.Flags
	// Exclude, if non-nil, is called once per read that passed FlagExclude.  A
	// read for which it returns true never enters the pileup.
	Exclude func(r *sam.Record) bool
}

// DefaultOpts is the default MultiPileup configuration.
var DefaultOpts = Opts{FlagExclude: DefaultFlagExclude}

// SourceStats counts the reads consumed from one input.
type SourceStats struct {
	// Reads is the number of records read.
	Reads int
	// Excluded is the number of records kept out of the pileup, by flag, by
	// Opts.Exclude, or for covering no reference base.
	Excluded int
}

// activeRead is a read that covers the current pileup position.  It carries a
// CIGAR cursor that only moves forward.
type activeRead struct {
	rec *sam.Record
	end int
	seq uint64

	opIdx    int // CIGAR op containing the cursor
	opRefPos int // reference position where op opIdx starts
	qpos     int // query offset where op opIdx starts
}

// Compare orders reads by alignment end, ties broken by admission order, so
// that the tree minimum is the next read to leave the pileup.
func (a *activeRead) Compare(c llrb.Comparable) int {
	b := c.(*activeRead)
	if a.end != b.end {
		return a.end - b.end
	}
	switch {
	case a.seq < b.seq:
		return -1
	case a.seq > b.seq:
		return 1
	}
	return 0
}

// observe returns the read's observation at pos.
//
// REQUIRES: pos is in [rec.Pos, end) and is >= the pos of the previous call.
func (a *activeRead) observe(pos int, source int) Observation {
	cigar := a.rec.Cigar
	for a.opIdx < len(cigar) {
		co := cigar[a.opIdx]
		n := co.Len()
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if pos < a.opRefPos+n {
				obs := Observation{Source: source, Qual: MissingQual}
				if qi := a.qpos + pos - a.opRefPos; qi < len(a.rec.Qual) {
					obs.Qual = a.rec.Qual[qi]
				}
				return obs
			}
			a.opRefPos += n
			a.qpos += n
		case sam.CigarDeletion:
			if pos < a.opRefPos+n {
				return Observation{Source: source, Flags: ObsDel}
			}
			a.opRefPos += n
		case sam.CigarSkipped:
			if pos < a.opRefPos+n {
				return Observation{Source: source, Flags: ObsRefSkip}
			}
			a.opRefPos += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			a.qpos += n
		}
		a.opIdx++
	}
	// Unreachable while pos < end.
	return Observation{Source: source, Flags: ObsDel}
}

type pileupSource struct {
	iter bamprovider.Iterator
	// next is the next read to admit, or nil if the input is exhausted.
	next    *sam.Record
	lastRef int
	lastPos int
	active  llrb.Tree
	nextSeq uint64
	stats   SourceStats
}

// MultiPileup merges coordinate-sorted read streams into a stream of
// Positions, one per reference position covered by at least one read of any
// input, in increasing (RefID, Pos) order.
//
// Every input must use the same reference dictionary.  Unmapped reads at the
// end of a file end that input.
type MultiPileup struct {
	opts    Opts
	sources []*pileupSource

	refID   int
	pos     int
	emitted bool
	cur     Position
	err     error
}

// NewMultiPileup creates a MultiPileup over iters.  The caller keeps ownership
// of the iterators and closes them after the MultiPileup is done.
func NewMultiPileup(iters []bamprovider.Iterator, opts Opts) *MultiPileup {
	m := &MultiPileup{
		opts:    opts,
		sources: make([]*pileupSource, len(iters)),
		refID:   -1,
	}
	m.cur.Obs = make([][]Observation, len(iters))
	for i, iter := range iters {
		m.sources[i] = &pileupSource{iter: iter, lastRef: -1}
	}
	for i := range m.sources {
		if m.err = m.fetch(i); m.err != nil {
			break
		}
	}
	return m
}

func (m *MultiPileup) excluded(r *sam.Record) bool {
	if r.Flags&m.opts.FlagExclude != 0 {
		return true
	}
	if refLen, _ := r.Cigar.Lengths(); refLen == 0 {
		return true
	}
	return m.opts.Exclude != nil && m.opts.Exclude(r)
}

// fetch sets sources[i].next to the next read of input i that enters the
// pileup.
func (m *MultiPileup) fetch(i int) error {
	s := m.sources[i]
	s.next = nil
	for s.iter.Scan() {
		r := s.iter.Record()
		refID := r.Ref.ID()
		if refID < 0 {
			// Unmapped reads sort last.
			sam.PutInFreePool(r)
			return nil
		}
		s.stats.Reads++
		if refID < s.lastRef || (refID == s.lastRef && r.Pos < s.lastPos) {
			return errors.E(errors.Integrity, "input", i, "is not coordinate-sorted: read", r.Name,
				"at", r.Ref.Name(), r.Pos, "follows position", s.lastPos)
		}
		s.lastRef, s.lastPos = refID, r.Pos
		if m.excluded(r) {
			s.stats.Excluded++
			sam.PutInFreePool(r)
			continue
		}
		s.next = r
		return nil
	}
	return s.iter.Err()
}

// admit moves the reads of every input that start at the cursor into the
// pileup.
func (m *MultiPileup) admit() error {
	for i, s := range m.sources {
		for s.next != nil && s.next.Ref.ID() == m.refID && s.next.Pos == m.pos {
			refLen, _ := s.next.Cigar.Lengths()
			s.active.Insert(&activeRead{
				rec:      s.next,
				end:      s.next.Pos + refLen,
				seq:      s.nextSeq,
				opRefPos: s.next.Pos,
			})
			s.nextSeq++
			if err := m.fetch(i); err != nil {
				return err
			}
		}
	}
	return nil
}

// evict drops the reads that end at or before the cursor.
func (m *MultiPileup) evict() {
	for _, s := range m.sources {
		for s.active.Len() > 0 {
			a := s.active.Min().(*activeRead)
			if a.end > m.pos {
				break
			}
			s.active.DeleteMin()
			sam.PutInFreePool(a.rec)
		}
	}
}

// seekNext moves the cursor to the first read start among all inputs.  It
// returns false if every input is exhausted.
func (m *MultiPileup) seekNext() bool {
	found := false
	for _, s := range m.sources {
		r := s.next
		if r == nil {
			continue
		}
		if !found || r.Ref.ID() < m.refID || (r.Ref.ID() == m.refID && r.Pos < m.pos) {
			m.refID, m.pos = r.Ref.ID(), r.Pos
			found = true
		}
	}
	return found
}

func (m *MultiPileup) nActive() int {
	n := 0
	for _, s := range m.sources {
		n += s.active.Len()
	}
	return n
}

// Scan advances to the next covered position.  It returns false at the end of
// all inputs or on error; Err distinguishes the two.
func (m *MultiPileup) Scan() bool {
	if m.err != nil {
		return false
	}
	if m.emitted {
		m.pos++
		m.evict()
	}
	if m.nActive() == 0 {
		prevRef := m.refID
		if !m.seekNext() {
			return false
		}
		if m.refID != prevRef {
			log.Debug.Printf("pileup: reference %d", m.refID)
		}
	}
	if m.err = m.admit(); m.err != nil {
		return false
	}
	m.cur.RefID = m.refID
	m.cur.Pos = PosType(m.pos)
	for i, s := range m.sources {
		obs := m.cur.Obs[i][:0]
		s.active.Do(func(c llrb.Comparable) bool {
			obs = append(obs, c.(*activeRead).observe(m.pos, i))
			return false
		})
		m.cur.Obs[i] = obs
	}
	m.emitted = true
	return true
}

// Position returns the current position.  It is valid until the next call to
// Scan.
func (m *MultiPileup) Position() *Position {
	return &m.cur
}

// Err returns the first error encountered by Scan.
func (m *MultiPileup) Err() error {
	return m.err
}

// Stats returns per-input read counts.
func (m *MultiPileup) Stats() []SourceStats {
	stats := make([]SourceStats, len(m.sources))
	for i, s := range m.sources {
		stats[i] = s.stats
	}
	return stats
}
