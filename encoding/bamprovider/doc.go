// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bamprovider provides utilities for reading the records of a BAM
// file that overlap a genomic range.
//
// The Provider is an interface for reading a BAM file; an Iterator yields the
// records of one Shard in coordinate order.
package bamprovider
