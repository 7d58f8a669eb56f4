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
package depth

import (
	"github.com/grailbio/bamdepth/interval"
	"github.com/grailbio/bamdepth/pileup"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// AggregatorOpts configures an Aggregator.
type AggregatorOpts struct {
	Mode Mode
	// WindowSize is the window length in Windowed mode.
	WindowSize int
	// Region clips the input.  Use Unrestricted for no clipping.
	Region Region
	// BED, if non-nil, drops positions outside its intervals.
	BED    *interval.BEDUnion
	Filter QualityFilter
}

type aggState int

const (
	// stateInit: no position accepted yet.
	stateInit aggState = iota
	// stateInChrom: positions of Aggregator.refID are being accumulated.
	stateInChrom
)

// Aggregator turns a stream of pileup Positions into depth records.
//
// Positions pass the region clip, then the BED clip.  In Average and Windowed
// modes, a change of reference emits the closing record of the previous
// reference before anything of the new one is accumulated.  In Windowed mode,
// a position at or past the end of the current window emits that window and
// opens the next one; only one window closes per position, so windows lying
// entirely inside a coverage gap are never emitted and the positions after
// the gap are credited to the window after the last emitted one until the
// window index catches up.  The record that closes a reference in Windowed
// mode carries the totals accumulated since the last window boundary, labeled
// as the reference's trailing partial window: start refLen-refLen%WindowSize,
// length refLen%WindowSize.
//
// Aggregator is not thread safe.
type Aggregator struct {
	opts AggregatorOpts
	refs []*sam.Reference
	w    RecordWriter

	state     aggState
	refID     int
	windowIdx int
	totals    []int64
	rec       Record
	nEmitted  int
}

// NewAggregator creates an Aggregator for nSource inputs.  refs is the
// reference dictionary of the inputs; Position.RefID indexes it.
func NewAggregator(refs []*sam.Reference, nSource int, opts AggregatorOpts, w RecordWriter) *Aggregator {
	a := &Aggregator{
		opts:   opts,
		refs:   refs,
		w:      w,
		state:  stateInit,
		refID:  -1,
		totals: make([]int64, nSource),
	}
	a.rec.Depths = make([]int, nSource)
	a.rec.Means = make([]float64, nSource)
	return a
}

func (a *Aggregator) accepts(p *pileup.Position) bool {
	if !a.opts.Region.Contains(p.RefID, int(p.Pos)) {
		return false
	}
	if a.opts.BED != nil && !a.opts.BED.ContainsByName(a.refs[p.RefID].Name(), p.Pos) {
		return false
	}
	return true
}

// Add processes one position.  Positions must arrive in increasing
// (RefID, Pos) order.
func (a *Aggregator) Add(p *pileup.Position) error {
	if p.RefID < 0 || p.RefID >= len(a.refs) {
		return errors.E(errors.Invalid, "position on unknown reference", p.RefID)
	}
	if len(p.Obs) != len(a.totals) {
		return errors.E(errors.Invalid, "position has", len(p.Obs), "inputs, want", len(a.totals))
	}
	if !a.accepts(p) {
		return nil
	}
	pos := int(p.Pos)
	if a.state == stateInit || p.RefID != a.refID {
		if a.state == stateInChrom {
			if err := a.closeRef(); err != nil {
				return err
			}
		}
		log.Debug.Printf("depth: %s", a.refs[p.RefID].Name())
		a.state = stateInChrom
		a.refID = p.RefID
		a.windowIdx = 0
	}
	if a.opts.Mode == Windowed && pos >= (a.windowIdx+1)*a.opts.WindowSize {
		start := a.windowIdx * a.opts.WindowSize
		if err := a.emitMeans(start, a.opts.WindowSize); err != nil {
			return err
		}
		a.windowIdx++
	}
	if a.opts.Mode == PerBase {
		for i, obs := range p.Obs {
			a.rec.Depths[i] = a.opts.Filter.Depth(obs)
		}
		a.rec.Mode = PerBase
		a.rec.RefName = a.refs[p.RefID].Name()
		a.rec.Pos = pos
		a.rec.Length = 0
		a.rec.Means = a.rec.Means[:0]
		return a.write()
	}
	for i, obs := range p.Obs {
		a.totals[i] += int64(a.opts.Filter.Depth(obs))
	}
	return nil
}

// closeRef emits the closing record of the current reference.
func (a *Aggregator) closeRef() error {
	refLen := a.refs[a.refID].Len()
	switch a.opts.Mode {
	case Average:
		if a.opts.Region.IsSet() {
			return a.emitMeans(a.opts.Region.Begin, a.opts.Region.Len())
		}
		return a.emitMeans(0, refLen)
	case Windowed:
		// The closing record is always labeled as the reference's trailing
		// partial window, wherever coverage stopped.  Its length is zero when
		// the reference length is a multiple of the window size.
		length := refLen % a.opts.WindowSize
		return a.emitMeans(refLen-length, length)
	}
	return nil
}

// emitMeans writes totals/length for the current reference and resets the
// totals.  A zero length yields means of zero.
func (a *Aggregator) emitMeans(start, length int) error {
	a.rec.Mode = a.opts.Mode
	a.rec.RefName = a.refs[a.refID].Name()
	a.rec.Pos = start
	a.rec.Length = length
	a.rec.Depths = a.rec.Depths[:0]
	a.rec.Means = a.rec.Means[:len(a.totals)]
	for i, total := range a.totals {
		a.rec.Means[i] = 0
		if length > 0 {
			a.rec.Means[i] = float64(total) / float64(length)
		}
		a.totals[i] = 0
	}
	return a.write()
}

func (a *Aggregator) write() error {
	a.nEmitted++
	err := a.w.Write(&a.rec)
	a.rec.Depths = a.rec.Depths[:cap(a.rec.Depths)]
	a.rec.Means = a.rec.Means[:cap(a.rec.Means)]
	return err
}

// Finish emits the closing record of the last reference in Average and
// Windowed modes.  It does nothing if no position was accepted.  Add must not
// be called after Finish.
func (a *Aggregator) Finish() error {
	if a.state != stateInChrom {
		return nil
	}
	a.state = stateInit
	return a.closeRef()
}

// NEmitted returns the number of records written so far.
func (a *Aggregator) NEmitted() int {
	return a.nEmitted
}
