// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

/*Package interval implements the inclusion-list side of a coverage scan: a
  union of genomic intervals loaded from a BED or position-list file, and the
  parser for samtools-style region strings.
  (Overlapping intervals are merged, not tracked separately.)
  It assumes every position fits in a PosType, which is int32 since that's
  what BAM files are limited to.
*/
package interval
