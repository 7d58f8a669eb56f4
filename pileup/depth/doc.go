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

// Package depth computes read depth over one or more coordinate-sorted BAM
// files, per base, per fixed-size window, or as one average per chromosome or
// region.
//
// Reads are dropped before they enter the pileup if their flags intersect
// Opts.FlagExclude, their mapping quality is below Opts.Mapq, or their query
// length is below Opts.MinLen.  At each position, deletions, reference skips
// and bases with quality below Opts.MinBaseQual do not count.
package depth
