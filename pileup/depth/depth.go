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

	gbam "github.com/grailbio/bamdepth/encoding/bam"
	"github.com/grailbio/bamdepth/encoding/bamprovider"
	"github.com/grailbio/bamdepth/interval"
	"github.com/grailbio/bamdepth/pileup"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// Main runs Run with the output named by opts.OutPath.
func Main(ctx context.Context, opts Opts, paths []string) (err error) {
	if err = opts.validate(len(paths)); err != nil {
		return err
	}
	out, err := OpenOutput(ctx, opts.OutPath)
	if err != nil {
		return err
	}
	defer func() {
		if e := out.Close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	return Run(ctx, opts, paths, out)
}

// Run computes the depth of the BAM files in paths and writes records to out.
// Every file, index and iterator opened by Run is closed before it returns,
// on success and on error.  Records written before an error stay written.
func Run(ctx context.Context, opts Opts, paths []string, out io.Writer) (err error) {
	if err = opts.validate(len(paths)); err != nil {
		return err
	}
	var bed *interval.BEDUnion
	if opts.BedPath != "" {
		u, err := interval.NewBEDUnionFromPath(opts.BedPath)
		if err != nil {
			return errors.E(err, "load bed")
		}
		bed = &u
	}

	providers := make([]bamprovider.Provider, len(paths))
	for i, path := range paths {
		var popts bamprovider.ProviderOpts
		if opts.IndexExt != "" {
			popts.Index = path + opts.IndexExt
		}
		providers[i] = bamprovider.NewProvider(path, popts)
	}
	defer func() {
		for _, p := range providers {
			if e := p.Close(); e != nil && err == nil {
				err = e
			}
		}
	}()

	var header *sam.Header
	for i, p := range providers {
		h, err := p.GetHeader()
		if err != nil {
			return errors.E(err, paths[i])
		}
		if i == 0 {
			header = h
			continue
		}
		if err := bamprovider.SameReferences(header, h); err != nil {
			return errors.E(err, paths[i], "vs", paths[0])
		}
	}

	region, err := ParseRegion(header, opts.Region)
	if err != nil {
		return err
	}
	iters := make([]bamprovider.Iterator, len(providers))
	for i, p := range providers {
		if region.IsSet() {
			iters[i] = bamprovider.NewRefIterator(p, header.Refs()[region.RefID].Name(), region.Begin, region.End)
		} else {
			iters[i] = p.NewIterator(gbam.UniversalShard(header))
		}
	}
	defer func() {
		for i, iter := range iters {
			if e := iter.Close(); e != nil && err == nil {
				err = errors.E(e, paths[i])
			}
		}
	}()

	filter := QualityFilter{MinBaseQual: opts.MinBaseQual, Mapq: opts.Mapq, MinLen: opts.MinLen}
	mp := pileup.NewMultiPileup(iters, pileup.Opts{
		FlagExclude: sam.Flags(opts.FlagExclude),
		Exclude:     filter.ExcludeRead,
	})
	w := NewTSVWriter(out)
	agg := NewAggregator(header.Refs(), len(paths), AggregatorOpts{
		Mode:       opts.Mode(),
		WindowSize: opts.WindowSize,
		Region:     region,
		BED:        bed,
		Filter:     filter,
	}, w)
	log.Printf("depth: %d input(s), %s mode, region %s", len(paths), opts.Mode(), region)

	for mp.Scan() {
		if err = agg.Add(mp.Position()); err != nil {
			break
		}
	}
	if err == nil {
		err = mp.Err()
	}
	if err == nil {
		err = agg.Finish()
	}
	if e := w.Flush(); e != nil && err == nil {
		err = e
	}
	for i, s := range mp.Stats() {
		log.Printf("depth: %s: %d read(s), %d excluded", paths[i], s.Reads, s.Excluded)
	}
	if err == nil {
		log.Printf("depth: %d record(s) written", agg.NEmitted())
	}
	return err
}
