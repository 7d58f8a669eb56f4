// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package interval

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Unbounded is the End of a region that extends to the end of its
// chromosome.  Callers clamp it to the chromosome length.
const Unbounded = PosType(posTypeMax - 1)

// parseCoord parses a 1-based coordinate.  Thousands separators are allowed.
func parseCoord(s string) (PosType, error) {
	v, err := strconv.ParseInt(strings.Replace(s, ",", "", -1), 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "interval.ParseRegionString: bad coordinate %q", s)
	}
	if v <= 0 || v >= posTypeMax {
		return 0, errors.Errorf("interval.ParseRegionString: position %s in region string out of range", s)
	}
	return PosType(v), nil
}

// ParseRegionString parses a region string of one of the forms
//   [contig]
//   [contig]:[1-based first pos]-[last pos]
//   [contig]:[1-based first pos]-
//   [contig]:-[last pos]
//   [contig]:[1-based pos]
// returning the contig name and 0-based half-open interval boundaries.  End is
// Unbounded when the region has no upper limit.
func ParseRegionString(region string) (result Entry, err error) {
	if len(region) == 0 {
		err = errors.New("interval.ParseRegionString: empty region string")
		return
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		result.ChrName = region
		result.End = Unbounded
		return
	}
	if colonPos == 0 {
		err = errors.Errorf("interval.ParseRegionString: empty contig name in %q", region)
		return
	}
	result.ChrName = region[:colonPos]
	rangeStr := region[colonPos+1:]
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		var pos1 PosType
		if pos1, err = parseCoord(rangeStr); err != nil {
			return
		}
		result.Start0 = pos1 - 1
		result.End = pos1
		return
	}
	startStr := rangeStr[:dashPos]
	endStr := rangeStr[dashPos+1:]
	start1 := PosType(1)
	if startStr != "" {
		if start1, err = parseCoord(startStr); err != nil {
			return
		}
	}
	result.Start0 = start1 - 1
	if endStr == "" {
		result.End = Unbounded
		return
	}
	if result.End, err = parseCoord(endStr); err != nil {
		return
	}
	if result.End < start1 {
		err = errors.Errorf("interval.ParseRegionString: start %s after end %s", startStr, endStr)
	}
	return
}
