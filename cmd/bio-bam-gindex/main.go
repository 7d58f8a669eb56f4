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

// See doc.go for documentation
import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/grailbio/bamdepth/encoding/bam"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/pborman/getopt"
)

func main() {
	os.Exit(run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	options := getopt.New()
	options.SetProgram(filepath.Base(args[0]))
	options.SetParameters("[<in.bam> [<out.gbai>]]")
	shardSize := options.IntLong("shard-size", 's', bam.DefaultGIndexByteInterval, "approximate bytes per interval in index")
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
	if len(options.Args()) > 2 || *shardSize <= 0 {
		options.PrintUsage(stderr)
		return 1
	}
	if err := index(vcontext.Background(), options.Args(), *shardSize, stdin, stdout); err != nil {
		log.Error.Printf("%v", err)
		return 1
	}
	return 0
}

// index reads the BAM named by paths[0], or stdin, and writes its gindex to
// paths[1], or stdout.
func index(ctx context.Context, paths []string, shardSize int, stdin io.Reader, stdout io.Writer) (err error) {
	r, w := stdin, stdout
	if len(paths) > 0 {
		var in file.File
		if in, err = file.Open(ctx, paths[0]); err != nil {
			return err
		}
		defer file.CloseAndReport(ctx, in, &err)
		r = in.Reader(ctx)
	}
	if len(paths) > 1 {
		var out file.File
		if out, err = file.Create(ctx, paths[1]); err != nil {
			return err
		}
		defer file.CloseAndReport(ctx, out, &err)
		w = out.Writer(ctx)
	}
	return bam.WriteGIndex(w, r, shardSize, runtime.NumCPU())
}
