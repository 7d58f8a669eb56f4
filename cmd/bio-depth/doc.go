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

/*
Command bio-depth reports the read depth of one or more coordinate-sorted BAM
files, in the format of samtools depth.

  bio-depth [-r region] [-b targets.bed] [-q minbq] [-Q minmapq] [-l minlen] in1.bam [in2.bam ...]

prints one line per covered position, with the 1-based position followed by
one depth column per input:

  chr1	10001	12	9

With -a, it prints the mean depth of each chromosome instead, or a single
mean for the region given by -r:

  chr1	248956422	30.12	28.54

With -w N, it prints the mean depth of each N-base window, preceded by the
window's 0-based start and its length:

  chr1	0	1000	0.00	0.00
  chr1	1000	1000	3.40	2.98

-a cannot be combined with -b or -w.  Reads that are unmapped, secondary,
QC-failed or duplicates are skipped; --flag-exclude changes that mask.  A BAM
index (bampath.bai) is used for -r when present; --index-ext makes an index
mandatory and names its extension, for example .gbai for indices written by
bio-bam-gindex.

Errors are logged, and the exit status is 1 for a bad command line, a bad
input, or an I/O failure.
*/
package main
