// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package interval

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// PosType is BEDUnion's coordinate type.
type PosType int32

const posTypeMax = math.MaxInt32

// getTokens saves up to len(tokens) whitespace-delimited tokens of line into
// tokens, and returns the number saved.  Any byte <= ' ' is a delimiter.
func getTokens(tokens [][]byte, line []byte) int {
	end := 0
	for i := range tokens {
		pos := end
		for pos < len(line) && line[pos] <= ' ' {
			pos++
		}
		if pos == len(line) {
			return i
		}
		end = pos
		for end < len(line) && line[end] > ' ' {
			end++
		}
		tokens[i] = line[pos:end]
	}
	return len(tokens)
}

// searchPosType is sort.SearchInts for PosType.
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// fwdsearchPosType is searchPosType for a caller that knows the answer is >=
// idx.  It gallops forward from idx, then finishes with a binary search.
func fwdsearchPosType(a []PosType, x PosType, idx int) int {
	incr := 1
	lo := idx
	hi := len(a)
	for idx < hi {
		if a[idx] >= x {
			hi = idx
			break
		}
		lo = idx + 1
		idx += incr
		incr *= 2
	}
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if a[mid] >= x {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// BEDUnion is the union of a set of intervals, stored per chromosome as a
// sorted sequence of 2N boundaries: interval k covers [a[2k], a[2k+1]).  A
// position is inside the union iff the number of boundaries <= pos is odd.
//
// Lookups are cheapest when made in nondecreasing position order within a
// chromosome, which is how a coverage scan queries it.  BEDUnion is not
// thread-safe, since lookups update the search cache.
type BEDUnion struct {
	// nameMap maps a chromosome name to its disjoint interval set.
	nameMap map[string][]PosType
	// nBases is the number of positions covered by the union.
	nBases int

	// Search cache for the most recently queried chromosome.
	lastChrName      string
	lastChrIntervals []PosType
	lastPosPlus1     PosType
	lastIdx          int
	isSequential     bool
}

// Entry represents a single interval, with 0-based coordinates.
type Entry struct {
	ChrName string
	Start0  PosType
	End     PosType
}

// ContainsByName checks whether the (0-based) position pos on chromosome
// chrName is inside the union.
func (u *BEDUnion) ContainsByName(chrName string, pos PosType) bool {
	posPlus1 := pos + 1
	if chrName != u.lastChrName {
		u.lastChrName = chrName
		u.lastChrIntervals = u.nameMap[chrName]
		if u.lastChrIntervals == nil {
			return false
		}
		u.lastIdx = searchPosType(u.lastChrIntervals, posPlus1)
		u.lastPosPlus1 = posPlus1
		u.isSequential = true
		return u.lastIdx&1 == 1
	}
	if u.lastChrIntervals == nil {
		return false
	}
	if u.isSequential {
		if posPlus1 >= u.lastPosPlus1 {
			u.lastIdx = fwdsearchPosType(u.lastChrIntervals, posPlus1, u.lastIdx)
			u.lastPosPlus1 = posPlus1
			return u.lastIdx&1 == 1
		}
		u.isSequential = false
	}
	return searchPosType(u.lastChrIntervals, posPlus1)&1 == 1
}

// NBases returns the number of positions covered by the union.
func (u *BEDUnion) NBases() int {
	return u.nBases
}

// Intervals returns the merged intervals of the named chromosome, in
// increasing order.
func (u *BEDUnion) Intervals(chrName string) []Entry {
	a := u.nameMap[chrName]
	entries := make([]Entry, 0, len(a)/2)
	for i := 0; i+1 < len(a); i += 2 {
		entries = append(entries, Entry{ChrName: chrName, Start0: a[i], End: a[i+1]})
	}
	return entries
}

// NewBEDUnionFromEntries initializes a BEDUnion from entries, which need not be
// sorted.  Overlapping and touching intervals are merged and empty ones are
// dropped.
func NewBEDUnionFromEntries(entries []Entry) (BEDUnion, error) {
	u := BEDUnion{nameMap: make(map[string][]PosType)}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	for _, e := range sorted {
		if e.Start0 < 0 {
			return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval.NewBEDUnionFromEntries: negative start coordinate in %+v", e))
		}
		if e.End < e.Start0 || e.End >= posTypeMax {
			return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval.NewBEDUnionFromEntries: invalid coordinate pair [%d, %d)", e.Start0, e.End))
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ChrName != sorted[j].ChrName {
			return sorted[i].ChrName < sorted[j].ChrName
		}
		return sorted[i].Start0 < sorted[j].Start0
	})
	for i := 0; i < len(sorted); {
		chrName := sorted[i].ChrName
		intervals := []PosType{}
		for ; i < len(sorted) && sorted[i].ChrName == chrName; i++ {
			e := sorted[i]
			if e.End == e.Start0 {
				continue
			}
			n := len(intervals)
			if n > 0 && e.Start0 <= intervals[n-1] {
				if e.End > intervals[n-1] {
					u.nBases += int(e.End - intervals[n-1])
					intervals[n-1] = e.End
				}
				continue
			}
			intervals = append(intervals, e.Start0, e.End)
			u.nBases += int(e.End - e.Start0)
		}
		// A chromosome mentioned only by empty intervals is kept, with no
		// covered position.
		u.nameMap[chrName] = intervals
	}
	return u, nil
}

func skipBEDLine(line []byte) bool {
	return line[0] == '#' || bytes.HasPrefix(line, []byte("track")) || bytes.HasPrefix(line, []byte("browser"))
}

func parsePos(token []byte, lineIdx int) (PosType, error) {
	v, err := strconv.ParseInt(string(token), 10, 32)
	if err != nil {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("interval.NewBEDUnion: line %d", lineIdx), err)
	}
	if v < 0 || v >= posTypeMax {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("interval.NewBEDUnion: coordinate %s out of range on line %d", token, lineIdx))
	}
	return PosType(v), nil
}

// NewBEDUnion loads intervals from reader.  Two line shapes are accepted:
//
//   chr  start0  end  [...]   a BED interval, 0-based half-open
//   chr  pos1                 a single 1-based position
//
// Blank lines, comments, and "track"/"browser" lines are skipped.  Lines need
// not be sorted.
func NewBEDUnion(reader io.Reader) (BEDUnion, error) {
	scanner := bufio.NewScanner(reader)
	var (
		tokens  [3][]byte
		entries []Entry
		lineIdx int
	)
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		nToken := getTokens(tokens[:], line)
		if nToken == 0 || skipBEDLine(bytes.TrimLeft(line, " \t")) {
			continue
		}
		switch nToken {
		case 1:
			return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval.NewBEDUnion: line %d has too few columns", lineIdx))
		case 2:
			pos1, err := parsePos(tokens[1], lineIdx)
			if err != nil {
				return BEDUnion{}, err
			}
			if pos1 == 0 {
				return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval.NewBEDUnion: position 0 on line %d, positions are 1-based", lineIdx))
			}
			entries = append(entries, Entry{ChrName: string(tokens[0]), Start0: pos1 - 1, End: pos1})
		default:
			start, err := parsePos(tokens[1], lineIdx)
			if err != nil {
				return BEDUnion{}, err
			}
			end, err := parsePos(tokens[2], lineIdx)
			if err != nil {
				return BEDUnion{}, err
			}
			if end < start {
				return BEDUnion{}, errors.E(errors.Invalid, fmt.Sprintf("interval.NewBEDUnion: end before start on line %d", lineIdx))
			}
			entries = append(entries, Entry{ChrName: string(tokens[0]), Start0: start, End: end})
		}
	}
	if err := scanner.Err(); err != nil {
		return BEDUnion{}, err
	}
	u, err := NewBEDUnionFromEntries(entries)
	if err != nil {
		return BEDUnion{}, err
	}
	log.Printf("BED loaded, %d interval(s), %d base(s) covered.", len(entries), u.nBases)
	return u, nil
}

// NewBEDUnionFromPath is a wrapper for NewBEDUnion that takes a path instead
// of an io.Reader.  A path ending in .gz is decompressed.
func NewBEDUnionFromPath(path string) (bedUnion BEDUnion, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return
		}
		defer gz.Close()
		reader = gz
	}
	if bedUnion, err = NewBEDUnion(reader); err != nil {
		err = errors.E(err, path)
	}
	return
}
