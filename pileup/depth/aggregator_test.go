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
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/grailbio/bamdepth/interval"
	"github.com/grailbio/bamdepth/pileup"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var (
	chrom1, _ = sam.NewReference("chrom1", "", "", 2000000, nil, nil)
	chrom2, _ = sam.NewReference("chrom2", "", "", 2500, nil, nil)
	chrom3, _ = sam.NewReference("chrom3", "", "", 3000, nil, nil)
	testRefs  = []*sam.Reference{chrom1, chrom2, chrom3}
)

// at builds a position where source i has depths[i] observations of
// quality 30.
func at(refID, pos int, depths ...int) *pileup.Position {
	p := &pileup.Position{RefID: refID, Pos: pileup.PosType(pos), Obs: make([][]pileup.Observation, len(depths))}
	for i, d := range depths {
		for j := 0; j < d; j++ {
			p.Obs[i] = append(p.Obs[i], pileup.Observation{Source: i, Qual: 30})
		}
	}
	return p
}

// recorder keeps a copy of every record it is given.
type recorder struct {
	recs []Record
}

func (r *recorder) Write(rec *Record) error {
	c := *rec
	c.Depths = append([]int(nil), rec.Depths...)
	c.Means = append([]float64(nil), rec.Means...)
	r.recs = append(r.recs, c)
	return nil
}

// runTSV feeds positions to a new Aggregator and returns the TSV output.
func runTSV(t *testing.T, nSource int, opts AggregatorOpts, positions ...*pileup.Position) string {
	var buf bytes.Buffer
	w := NewTSVWriter(&buf)
	a := NewAggregator(testRefs, nSource, opts, w)
	for _, p := range positions {
		assert.NoError(t, a.Add(p))
	}
	assert.NoError(t, a.Finish())
	assert.NoError(t, w.Flush())
	return buf.String()
}

func runRecords(t *testing.T, nSource int, opts AggregatorOpts, positions ...*pileup.Position) []Record {
	r := &recorder{}
	a := NewAggregator(testRefs, nSource, opts, r)
	for _, p := range positions {
		assert.NoError(t, a.Add(p))
	}
	assert.NoError(t, a.Finish())
	expect.EQ(t, a.NEmitted(), len(r.recs))
	return r.recs
}

func perBaseOpts() AggregatorOpts {
	return AggregatorOpts{Mode: PerBase, Region: Unrestricted}
}

func TestPerBase(t *testing.T) {
	got := runTSV(t, 1, perBaseOpts(),
		at(0, 100, 3), at(0, 101, 3), at(0, 102, 4), at(0, 103, 5))
	expect.EQ(t, got, "chrom1\t101\t3\nchrom1\t102\t3\nchrom1\t103\t4\nchrom1\t104\t5\n")
}

func TestPerBaseQualityFilter(t *testing.T) {
	p := at(0, 150, 4, 6)
	p.Obs[1][2].Qual = 10
	opts := perBaseOpts()
	opts.Filter = QualityFilter{MinBaseQual: 20}
	expect.EQ(t, runTSV(t, 2, opts, p), "chrom1\t151\t4\t5\n")

	// A base at exactly the threshold counts.
	p.Obs[1][2].Qual = 20
	expect.EQ(t, runTSV(t, 2, opts, p), "chrom1\t151\t4\t6\n")
}

func TestPerBaseDeletionAndRefSkip(t *testing.T) {
	p := at(0, 7, 5)
	p.Obs[0][0].Flags = pileup.ObsDel
	p.Obs[0][1].Flags = pileup.ObsRefSkip
	p.Obs[0][2].Qual = pileup.MissingQual
	expect.EQ(t, runTSV(t, 1, perBaseOpts(), p), "chrom1\t8\t3\n")
}

func TestPerBaseZeroDepth(t *testing.T) {
	// A position that survives the clips is reported even if every
	// observation is filtered.
	p := at(1, 0, 2, 0)
	p.Obs[0][0].Flags = pileup.ObsDel
	p.Obs[0][1].Flags = pileup.ObsDel
	expect.EQ(t, runTSV(t, 2, perBaseOpts(), p), "chrom2\t1\t0\t0\n")
}

func TestAverageRegion(t *testing.T) {
	var positions []*pileup.Position
	for pos := 0; pos < 5000; pos++ {
		positions = append(positions, at(0, pos, 100))
	}
	opts := AggregatorOpts{
		Mode:   Average,
		Region: Region{RefID: 0, Begin: 0, End: 1000000},
	}
	expect.EQ(t, runTSV(t, 1, opts, positions...), "chrom1\t1000000\t0.50\n")
}

func TestAverageChromosomes(t *testing.T) {
	opts := AggregatorOpts{Mode: Average, Region: Unrestricted}
	recs := runRecords(t, 2, opts,
		at(1, 0, 10, 5), at(1, 2499, 15, 0),
		at(2, 10, 3, 3))
	expect.EQ(t, len(recs), 2)
	expect.EQ(t, recs[0].RefName, "chrom2")
	expect.EQ(t, recs[0].Length, 2500)
	expect.EQ(t, recs[0].Means, []float64{25.0 / 2500, 5.0 / 2500})
	expect.EQ(t, recs[1].RefName, "chrom3")
	expect.EQ(t, recs[1].Length, 3000)
	expect.EQ(t, recs[1].Means, []float64{3.0 / 3000, 3.0 / 3000})
}

func TestAverageZeroLength(t *testing.T) {
	// An empty region accepts no position, so there is nothing to report.
	opts := AggregatorOpts{Mode: Average, Region: Region{RefID: 0, Begin: 10, End: 10}}
	expect.EQ(t, runTSV(t, 1, opts, at(0, 10, 4)), "")

	// emitMeans itself never divides by zero.
	r := &recorder{}
	a := NewAggregator(testRefs, 1, AggregatorOpts{Mode: Average, Region: Unrestricted}, r)
	assert.NoError(t, a.Add(at(0, 3, 4)))
	assert.NoError(t, a.emitMeans(0, 0))
	expect.EQ(t, r.recs[0].Means, []float64{0})
	expect.False(t, math.IsNaN(r.recs[0].Means[0]))
}

func TestWindowed(t *testing.T) {
	var positions []*pileup.Position
	for pos := 0; pos < 2500; pos++ {
		positions = append(positions, at(1, pos, 2))
	}
	opts := AggregatorOpts{Mode: Windowed, WindowSize: 1000, Region: Unrestricted}
	expect.EQ(t, runTSV(t, 1, opts, positions...),
		"chrom2\t0\t1000\t2.00\n"+
			"chrom2\t1000\t1000\t2.00\n"+
			"chrom2\t2000\t500\t2.00\n")
}

func TestWindowedExactMultiple(t *testing.T) {
	// chrom3 is 3000 long, a multiple of the window size: the closing record
	// is the empty trailing window, and its means are zero.
	opts := AggregatorOpts{Mode: Windowed, WindowSize: 1000, Region: Unrestricted}
	recs := runRecords(t, 1, opts, at(2, 0, 1), at(2, 1000, 1), at(2, 2999, 1))
	expect.EQ(t, len(recs), 3)
	expect.EQ(t, recs[2].Pos, 3000)
	expect.EQ(t, recs[2].Length, 0)
	expect.EQ(t, recs[2].Means, []float64{0})
	expect.EQ(t, runTSV(t, 1, opts, at(2, 0, 1)), "chrom3\t3000\t0\t0.00\n")
}

func TestWindowedBoundary(t *testing.T) {
	// Position 999 belongs to the first window, 1000 to the second.
	opts := AggregatorOpts{Mode: Windowed, WindowSize: 1000, Region: Unrestricted}
	recs := runRecords(t, 1, opts, at(1, 999, 4), at(1, 1000, 6))
	expect.EQ(t, len(recs), 2)
	expect.EQ(t, recs[0].Pos, 0)
	expect.EQ(t, recs[0].Means, []float64{4.0 / 1000})
	expect.EQ(t, recs[1].Pos, 2000)
	expect.EQ(t, recs[1].Means, []float64{6.0 / 500})
}

func TestWindowedCoverageEndsEarly(t *testing.T) {
	// chrom2 is 2500 long and covered up to 1500 only.  The closing record is
	// still the trailing window [2000, 2500).
	opts := AggregatorOpts{Mode: Windowed, WindowSize: 1000, Region: Unrestricted}
	recs := runRecords(t, 1, opts, at(1, 10, 1), at(1, 1500, 1))
	expect.EQ(t, len(recs), 2)
	expect.EQ(t, recs[0].Pos, 0)
	expect.EQ(t, recs[0].Length, 1000)
	expect.EQ(t, recs[1].Pos, 2000)
	expect.EQ(t, recs[1].Length, 500)
	expect.EQ(t, recs[1].Means, []float64{1.0 / 500})
}

func TestWindowedGap(t *testing.T) {
	// Only one window closes per position.  Window [1000,2000) lies in the
	// gap between 10 and 2100 and is never emitted; the depth at 2100 is
	// credited to the window starting at 1000, the one after the last emitted
	// window, which then closes at 2200.
	opts := AggregatorOpts{Mode: Windowed, WindowSize: 1000, Region: Unrestricted}
	recs := runRecords(t, 1, opts, at(1, 10, 1), at(1, 2100, 7), at(1, 2200, 3))
	expect.EQ(t, len(recs), 3)
	expect.EQ(t, recs[0].Pos, 0)
	expect.EQ(t, recs[0].Means, []float64{1.0 / 1000})
	expect.EQ(t, recs[1].Pos, 1000)
	expect.EQ(t, recs[1].Length, 1000)
	expect.EQ(t, recs[1].Means, []float64{7.0 / 1000})
	expect.EQ(t, recs[2].Pos, 2000)
	expect.EQ(t, recs[2].Length, 500)
	expect.EQ(t, recs[2].Means, []float64{3.0 / 500})
}

func TestChromosomeChange(t *testing.T) {
	opts := AggregatorOpts{Mode: Windowed, WindowSize: 1000, Region: Unrestricted}
	recs := runRecords(t, 1, opts, at(1, 5, 1), at(1, 1200, 2), at(2, 5, 1), at(2, 1500, 1))
	var got []string
	for _, r := range recs {
		got = append(got, fmt.Sprintf("%s:%d+%d", r.RefName, r.Pos, r.Length))
	}
	// The closing window of chrom2 is emitted before anything of chrom3, and
	// the window index restarts at zero.
	expect.EQ(t, got, []string{"chrom2:0+1000", "chrom2:2000+500", "chrom3:0+1000", "chrom3:3000+0"})
	expect.EQ(t, recs[1].Means, []float64{2.0 / 500})
}

func TestCrossModeConsistency(t *testing.T) {
	var positions []*pileup.Position
	for pos := 0; pos < 2500; pos++ {
		positions = append(positions, at(1, pos, pos%7, (pos*3)%11))
	}
	perBase := runRecords(t, 2, perBaseOpts(), positions...)
	avg := runRecords(t, 2, AggregatorOpts{Mode: Average, Region: Unrestricted}, positions...)
	win := runRecords(t, 2, AggregatorOpts{Mode: Windowed, WindowSize: 300, Region: Unrestricted}, positions...)

	expect.EQ(t, len(avg), 1)
	for i := 0; i < 2; i++ {
		var sum int
		for _, r := range perBase {
			sum += r.Depths[i]
		}
		expect.True(t, math.Abs(avg[0].Means[i]*float64(avg[0].Length)-float64(sum)) < 1e-6)

		var winSum float64
		for _, r := range win {
			winSum += r.Means[i] * float64(r.Length)
		}
		expect.True(t, math.Abs(winSum-float64(sum)) < 1e-6, "source %d: %v vs %d", i, winSum, sum)
	}
}

func TestIdempotent(t *testing.T) {
	var positions []*pileup.Position
	for pos := 0; pos < 500; pos += 3 {
		positions = append(positions, at(2, pos, pos%5))
	}
	opts := AggregatorOpts{Mode: Windowed, WindowSize: 100, Region: Unrestricted}
	expect.EQ(t, runTSV(t, 1, opts, positions...), runTSV(t, 1, opts, positions...))
}

func TestRegionClip(t *testing.T) {
	opts := perBaseOpts()
	opts.Region = Region{RefID: 1, Begin: 10, End: 12}
	got := runTSV(t, 1, opts, at(0, 10, 1), at(1, 9, 1), at(1, 10, 2), at(1, 11, 3), at(1, 12, 4))
	expect.EQ(t, got, "chrom2\t11\t2\nchrom2\t12\t3\n")
}

func TestBEDClip(t *testing.T) {
	bed, err := interval.NewBEDUnionFromEntries([]interval.Entry{
		{ChrName: "chrom1", Start0: 10, End: 20},
	})
	assert.NoError(t, err)
	opts := perBaseOpts()
	opts.BED = &bed
	var positions []*pileup.Position
	for pos := 0; pos < 30; pos++ {
		positions = append(positions, at(0, pos, 1))
	}
	positions = append(positions, at(1, 15, 1))
	recs := runRecords(t, 1, opts, positions...)
	expect.EQ(t, len(recs), 10)
	for i, r := range recs {
		expect.EQ(t, r.RefName, "chrom1")
		expect.EQ(t, r.Pos, 10+i)
	}
}

func TestAddErrors(t *testing.T) {
	a := NewAggregator(testRefs, 2, perBaseOpts(), &recorder{})
	expect.NotNil(t, a.Add(at(3, 0, 1, 1)))
	expect.NotNil(t, a.Add(at(0, 0, 1)))
}

func TestFinishEmpty(t *testing.T) {
	opts := AggregatorOpts{Mode: Average, Region: Unrestricted}
	expect.EQ(t, len(runRecords(t, 1, opts)), 0)
}
