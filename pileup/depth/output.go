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
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// Record is one line of output.
type Record struct {
	Mode    Mode
	RefName string
	// Pos is the 0-based position for PerBase, and the window start for
	// Windowed.
	Pos int
	// Length is the region, chromosome, or window length for Average and
	// Windowed.
	Length int
	// Depths holds one depth per input for PerBase.
	Depths []int
	// Means holds one mean depth per input for Average and Windowed.
	Means []float64
}

// RecordWriter consumes the records emitted by an Aggregator.
type RecordWriter interface {
	Write(r *Record) error
}

// TSVWriter renders records as tab-separated lines:
//
//   PerBase:   chrom  pos(1-based)  depth...
//   Average:   chrom  length        mean...
//   Windowed:  chrom  start         length  mean...
//
// Means have two decimals.
type TSVWriter struct {
	w *tsv.Writer
}

// NewTSVWriter creates a TSVWriter.  Call Flush when done.
func NewTSVWriter(w io.Writer) *TSVWriter {
	return &TSVWriter{w: tsv.NewWriter(w)}
}

// Write implements RecordWriter.
func (t *TSVWriter) Write(r *Record) error {
	t.w.WriteString(r.RefName)
	switch r.Mode {
	case PerBase:
		t.w.WriteUint32(uint32(r.Pos + 1))
		for _, d := range r.Depths {
			t.w.WriteUint32(uint32(d))
		}
	case Average:
		t.w.WriteUint32(uint32(r.Length))
	case Windowed:
		t.w.WriteUint32(uint32(r.Pos))
		t.w.WriteUint32(uint32(r.Length))
	}
	for _, m := range r.Means {
		t.w.WriteString(strconv.FormatFloat(m, 'f', 2, 64))
	}
	return t.w.EndLine()
}

// Flush writes buffered lines to the underlying writer.
func (t *TSVWriter) Flush() error {
	return t.w.Flush()
}

// Output is the destination of a run: standard output, a file, or a BGZF
// compressed file when the path ends in .gz.
type Output struct {
	io.Writer
	f    file.File
	bgzf *bgzf.Writer
}

// OpenOutput opens path for writing.  An empty path or "-" selects standard
// output.
func OpenOutput(ctx context.Context, path string) (*Output, error) {
	if path == "" || path == "-" {
		return &Output{Writer: os.Stdout}, nil
	}
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	out := &Output{Writer: f.Writer(ctx), f: f}
	if strings.HasSuffix(path, ".gz") {
		out.bgzf = bgzf.NewWriter(out.Writer, 1)
		out.Writer = out.bgzf
	}
	return out, nil
}

// Close flushes and closes the output.  Standard output is left open.
func (o *Output) Close(ctx context.Context) (err error) {
	if o.bgzf != nil {
		err = o.bgzf.Close()
	}
	if o.f != nil {
		if e := o.f.Close(ctx); e != nil && err == nil {
			err = e
		}
	}
	return err
}
