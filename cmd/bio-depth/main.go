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
package main

// See doc.go for documentation.

import (
	"io"
	"os"
	"path/filepath"

	"github.com/grailbio/bamdepth/pileup/depth"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/pborman/getopt"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// run executes the command line args and returns the process exit code.
// Records go to stdout unless -o names a file; usage goes to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	options := getopt.New()
	options.SetProgram(filepath.Base(args[0]))
	options.SetParameters("<in1.bam> [<in2.bam> ...]")

	def := depth.DefaultOpts
	region := options.StringLong("region", 'r', def.Region, "only report positions in region chr, chr:from-to, chr:from- or chr:pos (1-based, inclusive)")
	bedPath := options.StringLong("bed", 'b', def.BedPath, "only report positions in the intervals of this BED file (may be gzipped)")
	minBaseQual := options.IntLong("min-base-qual", 'q', def.MinBaseQual, "only count bases with quality at least this")
	mapq := options.IntLong("mapq", 'Q', def.Mapq, "only count reads with mapping quality at least this")
	minLen := options.IntLong("min-len", 'l', def.MinLen, "only count reads with query length at least this")
	average := options.BoolLong("average", 'a', "report the mean depth of each chromosome, or of the region")
	window := options.IntLong("window", 'w', def.WindowSize, "report the mean depth of each window of this size")
	outPath := options.StringLong("out", 'o', def.OutPath, "output path; a .gz suffix selects BGZF compression (default: stdout)")
	indexExt := options.StringLong("index-ext", 0, def.IndexExt, "index path is bampath + this; the index must then exist (default: .bai, optional)")
	flagExclude := options.IntLong("flag-exclude", 0, def.FlagExclude, "skip reads with a FLAG bit in this mask")
	help := options.BoolLong("help", 'h', "print help")

	if err := options.Getopt(args, nil); err != nil {
		log.Error.Printf("%v", err)
		options.PrintUsage(stderr)
		return 1
	}
	if *help {
		options.PrintUsage(stderr)
		return 0
	}
	opts := depth.Opts{
		Region:      *region,
		BedPath:     *bedPath,
		MinBaseQual: *minBaseQual,
		Mapq:        *mapq,
		MinLen:      *minLen,
		Average:     *average,
		WindowSize:  *window,
		IndexExt:    *indexExt,
		FlagExclude: *flagExclude,
		OutPath:     *outPath,
	}
	ctx := vcontext.Background()
	var err error
	if opts.OutPath == "" {
		err = depth.Run(ctx, opts, options.Args(), stdout)
	} else {
		err = depth.Main(ctx, opts, options.Args())
	}
	if err != nil {
		log.Error.Printf("%v", err)
		if errors.Is(errors.Invalid, err) {
			options.PrintUsage(stderr)
		}
		return 1
	}
	log.Debug.Printf("exiting")
	return 0
}
