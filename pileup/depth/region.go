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
	"fmt"

	"github.com/grailbio/bamdepth/encoding/bamprovider"
	"github.com/grailbio/bamdepth/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// Region is a half-open, 0-based interval [Begin, End) of reference RefID.
// RefID -1 means every position is accepted.
type Region struct {
	RefID int
	Begin int
	End   int
}

// Unrestricted accepts every position.
var Unrestricted = Region{RefID: -1}

// IsSet returns false for the unrestricted region.
func (r Region) IsSet() bool { return r.RefID >= 0 }

// Len returns End - Begin.
func (r Region) Len() int { return r.End - r.Begin }

// Contains returns true if the region accepts position pos of reference
// refID.
func (r Region) Contains(refID, pos int) bool {
	if r.RefID < 0 {
		return true
	}
	return refID == r.RefID && pos >= r.Begin && pos < r.End
}

func (r Region) String() string {
	if !r.IsSet() {
		return "*"
	}
	return fmt.Sprintf("%d:%d-%d", r.RefID, r.Begin, r.End)
}

// ParseRegion resolves a region string against header.  An empty string
// yields Unrestricted.  A string that names a reference exactly selects the
// whole reference even if it contains ':'.  End is clamped to the reference
// length.
func ParseRegion(header *sam.Header, s string) (Region, error) {
	if s == "" {
		return Unrestricted, nil
	}
	if ref := bamprovider.RefByName(header, s); ref != nil {
		return Region{RefID: ref.ID(), Begin: 0, End: ref.Len()}, nil
	}
	entry, err := interval.ParseRegionString(s)
	if err != nil {
		return Unrestricted, errors.E(errors.Invalid, "bad region", s, err)
	}
	ref := bamprovider.RefByName(header, entry.ChrName)
	if ref == nil {
		return Unrestricted, errors.E(errors.Invalid, "region", s, ": reference", entry.ChrName, "not in BAM header")
	}
	r := Region{RefID: ref.ID(), Begin: int(entry.Start0), End: int(entry.End)}
	if r.End > ref.Len() {
		r.End = ref.Len()
	}
	if r.Begin > r.End {
		return Unrestricted, errors.E(errors.Invalid, "region", s, "starts past the end of", ref.Name())
	}
	return r, nil
}
