// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package interval

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestParseRegionString(t *testing.T) {
	tests := []struct {
		region  string
		chrName string
		start0  PosType
		end     PosType
	}{
		{"chr1:1-1000", "chr1", 0, 1000},
		{"chr1:1000", "chr1", 999, 1000},
		{"chr1:1000-1000", "chr1", 999, 1000},
		{"chr1:1,000-2,000", "chr1", 999, 2000},
		{"chr1:500-", "chr1", 499, Unbounded},
		{"chr1:-500", "chr1", 0, 500},
		{"chr1", "chr1", 0, Unbounded},
		{"HLA-A*01:01:01:01:100-200", "HLA-A*01:01:01:01", 99, 200},
	}
	for _, tt := range tests {
		result, err := ParseRegionString(tt.region)
		expect.NoError(t, err, tt.region)
		expect.EQ(t, result.ChrName, tt.chrName, tt.region)
		expect.EQ(t, result.Start0, tt.start0, tt.region)
		expect.EQ(t, result.End, tt.end, tt.region)
	}
}

func TestParseRegionStringErrors(t *testing.T) {
	for _, region := range []string{
		"",
		":1-10",
		"chr1:0-10",
		"chr1:10-5",
		"chr1:abc",
		"chr1:1-x",
		"chr1:-0",
	} {
		_, err := ParseRegionString(region)
		expect.True(t, err != nil, region)
	}
}
