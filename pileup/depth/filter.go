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
	"github.com/grailbio/hts/sam"
)

// QualityFilter holds the read-level and base-level thresholds.
type QualityFilter struct {
	// MinBaseQual is the minimum base quality of a counted observation.
	MinBaseQual int
	// Mapq is the minimum mapping quality of a read.
	Mapq int
	// MinLen, if positive, is the minimum query length (M/I/S/=/X CIGAR
	// ops) of a read.
	MinLen int
}

// ExcludeRead returns true if r must not contribute to any position.  It is
// evaluated once, when the read enters the pileup.
func (f QualityFilter) ExcludeRead(r *sam.Record) bool {
	if int(r.MapQ) < f.Mapq {
		return true
	}
	if f.MinLen > 0 {
		if _, qlen := r.Cigar.Lengths(); qlen < f.MinLen {
			return true
		}
	}
	return false
}

// Filtered returns true if o does not count toward the depth of its position.
func (f QualityFilter) Filtered(o pileup.Observation) bool {
	return o.Flags != 0 || int(o.Qual) < f.MinBaseQual
}

// Depth returns the number of observations in obs that pass the filter.
func (f QualityFilter) Depth(obs []pileup.Observation) int {
	n := len(obs)
	for _, o := range obs {
		if f.Filtered(o) {
			n--
		}
	}
	return n
}
