// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package interval

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

func TestNewBEDUnion(t *testing.T) {
	tests := []struct {
		name string
		bed  string
		want map[string][]PosType
	}{
		{
			"sorted",
			"chr1\t10\t20\nchr1\t30\t40\nchr2\t0\t5\n",
			map[string][]PosType{"chr1": {10, 20, 30, 40}, "chr2": {0, 5}},
		},
		{
			"unsorted and overlapping",
			"chr1\t30\t40\nchr2\t0\t5\nchr1\t10\t20\nchr1\t15\t32\n",
			map[string][]PosType{"chr1": {10, 40}, "chr2": {0, 5}},
		},
		{
			"touching intervals merge",
			"chr1 10 20\nchr1 20 25\n",
			map[string][]PosType{"chr1": {10, 25}},
		},
		{
			"headers and comments",
			"track name=foo\nbrowser position chr1\n# comment\n\nchr1\t1\t2\tname\t0\t+\n",
			map[string][]PosType{"chr1": {1, 2}},
		},
		{
			"position list is 1-based",
			"chr1\t11\nchr1\t12\nchr3\t1\n",
			map[string][]PosType{"chr1": {10, 12}, "chr3": {0, 1}},
		},
		{
			"empty interval mentions chromosome",
			"chr1\t5\t5\n",
			map[string][]PosType{"chr1": {}},
		},
	}
	for _, tt := range tests {
		u, err := NewBEDUnion(strings.NewReader(tt.bed))
		assert.NoError(t, err, tt.name)
		expect.EQ(t, u.nameMap, tt.want, tt.name)
	}
}

func TestNewBEDUnionErrors(t *testing.T) {
	for _, bed := range []string{
		"chr1\n",
		"chr1\tx\t10\n",
		"chr1\t20\t10\n",
		"chr1\t-1\t10\n",
		"chr1\t0\n",
	} {
		_, err := NewBEDUnion(strings.NewReader(bed))
		expect.True(t, errors.Is(errors.Invalid, err), bed, err)
	}
}

func TestContainsByName(t *testing.T) {
	u, err := NewBEDUnion(strings.NewReader("chr1\t10\t20\nchr1\t30\t40\nchr2\t0\t1\n"))
	assert.NoError(t, err)
	expect.EQ(t, u.NBases(), 21)

	var got []PosType
	for pos := PosType(0); pos < 50; pos++ {
		if u.ContainsByName("chr1", pos) {
			got = append(got, pos)
		}
	}
	expect.EQ(t, len(got), 20)
	expect.EQ(t, got[0], PosType(10))
	expect.EQ(t, got[9], PosType(19))
	expect.EQ(t, got[10], PosType(30))
	expect.EQ(t, got[19], PosType(39))

	// Out-of-order and cross-chromosome queries fall back to a full search.
	expect.True(t, u.ContainsByName("chr2", 0))
	expect.False(t, u.ContainsByName("chr2", 1))
	expect.True(t, u.ContainsByName("chr1", 35))
	expect.True(t, u.ContainsByName("chr1", 15))
	expect.False(t, u.ContainsByName("chr1", 25))
	expect.False(t, u.ContainsByName("chrX", 15))
	expect.False(t, u.ContainsByName("", 15))

	expect.EQ(t, u.Intervals("chr1"), []Entry{{"chr1", 10, 20}, {"chr1", 30, 40}})
}

func TestNewBEDUnionFromPath(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	const bed = "chr1\t100\t200\nchr2\t5\t6\n"
	plain := filepath.Join(tmpdir, "in.bed")
	assert.NoError(t, ioutil.WriteFile(plain, []byte(bed), 0644))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(bed))
	assert.NoError(t, err)
	assert.NoError(t, gz.Close())
	compressed := filepath.Join(tmpdir, "in.bed.gz")
	assert.NoError(t, ioutil.WriteFile(compressed, buf.Bytes(), 0644))

	for _, path := range []string{plain, compressed} {
		u, err := NewBEDUnionFromPath(path)
		assert.NoError(t, err, path)
		expect.EQ(t, u.nameMap, map[string][]PosType{"chr1": {100, 200}, "chr2": {5, 6}}, path)
	}

	// A missing file is an I/O error; only malformed content is Invalid.
	_, err = NewBEDUnionFromPath(filepath.Join(tmpdir, "missing.bed"))
	expect.True(t, err != nil)
	expect.False(t, errors.Is(errors.Invalid, err), err)

	malformed := filepath.Join(tmpdir, "bad.bed")
	assert.NoError(t, ioutil.WriteFile(malformed, []byte("chr1\t100\t200\nchr1\t300\n0\n"), 0644))
	_, err = NewBEDUnionFromPath(malformed)
	expect.True(t, errors.Is(errors.Invalid, err), err)
}
