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
	"github.com/grailbio/bamdepth/pileup"
	"github.com/grailbio/base/errors"
)

// Mode selects how depths are reported.
type Mode int

const (
	// PerBase reports one line per covered position.
	PerBase Mode = iota
	// Average reports one mean per chromosome, or one for the whole region.
	Average
	// Windowed reports one mean per fixed-size window of each chromosome.
	Windowed
)

func (m Mode) String() string {
	switch m {
	case PerBase:
		return "per-base"
	case Average:
		return "average"
	case Windowed:
		return "windowed"
	}
	return "unknown"
}

// Opts holds the configuration of a depth run.
type Opts struct {
	// Commandline options.
	Region      string
	BedPath     string
	MinBaseQual int
	Mapq        int
	MinLen      int
	Average     bool
	WindowSize  int
	// IndexExt is appended to each BAM path to name its index.  If empty, the
	// index is path + ".bai", and a missing index is tolerated.
	IndexExt    string
	FlagExclude int
	OutPath     string
}

// DefaultOpts matches samtools depth with no options.
var DefaultOpts = Opts{
	FlagExclude: int(pileup.DefaultFlagExclude),
}

// Mode returns the reporting mode selected by o.
func (o *Opts) Mode() Mode {
	switch {
	case o.Average:
		return Average
	case o.WindowSize > 0:
		return Windowed
	}
	return PerBase
}

// validate checks the option combinations that do not need a BAM header.
// nSource is the number of input files.
func (o *Opts) validate(nSource int) error {
	if nSource == 0 {
		return errors.E(errors.Invalid, "no input BAM files")
	}
	if o.Average && o.BedPath != "" {
		return errors.E(errors.Invalid, "-a (average) cannot be combined with -b (bed)")
	}
	if o.Average && o.WindowSize != 0 {
		return errors.E(errors.Invalid, "-a (average) cannot be combined with -w (window)")
	}
	if o.WindowSize < 0 {
		return errors.E(errors.Invalid, "window size must be positive, got", o.WindowSize)
	}
	if o.MinBaseQual < 0 || o.Mapq < 0 || o.MinLen < 0 {
		return errors.E(errors.Invalid, "quality and length thresholds must be non-negative")
	}
	if o.FlagExclude < 0 || o.FlagExclude > 0xffff {
		return errors.E(errors.Invalid, "flag mask out of range:", o.FlagExclude)
	}
	return nil
}
