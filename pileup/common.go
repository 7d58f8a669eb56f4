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
package pileup

import (
	"github.com/grailbio/bamdepth/interval"
	"github.com/grailbio/hts/sam"
)

// Common pileup components.

// PosType is the integer type used to represent genomic positions.
type PosType = interval.PosType

// DefaultFlagExclude is the set of SAM flags that keeps a read out of the
// pileup by default: unmapped, secondary, QC-fail and duplicate reads.
const DefaultFlagExclude = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate

// MissingQual is the base quality reported for a read stored without
// qualities.
const MissingQual = 0xff

// ObsFlags describes how a read covers a position.
type ObsFlags uint8

const (
	// ObsDel means the read has a deletion at the position.
	ObsDel ObsFlags = 1 << iota
	// ObsRefSkip means the read skips the position (CIGAR N).
	ObsRefSkip
)

// Observation is one read's contribution to one position.
type Observation struct {
	// Source is the index of the input the read came from.
	Source int
	Flags  ObsFlags
	// Qual is the base quality at the position.  It is meaningful only when
	// Flags is zero.
	Qual byte
}

// IsDel returns true if the read has a deletion at the position.
func (o Observation) IsDel() bool { return o.Flags&ObsDel != 0 }

// IsRefSkip returns true if the read skips the position.
func (o Observation) IsRefSkip() bool { return o.Flags&ObsRefSkip != 0 }

// Position is the pileup of every input at one reference position.
type Position struct {
	RefID int
	Pos   PosType
	// Obs[i] lists the observations from input i.
	Obs [][]Observation
}
