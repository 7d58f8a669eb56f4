// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"github.com/grailbio/hts/sam"
)

// failedIterator stands in for an iterator that could not be set up.  It holds
// no file and no provider slot, so closing it releases nothing.
type failedIterator struct {
	err error
}

func (i failedIterator) Scan() bool          { return false }
func (i failedIterator) Record() *sam.Record { panic("bamprovider: Record called on a failed iterator") }
func (i failedIterator) Err() error          { return i.err }
func (i failedIterator) Close() error        { return i.err }

// NewErrorIterator returns an Iterator that yields no records and reports err
// from both Err and Close.  NewRefIterator and BAMProvider.NewIterator use it
// when the requested range cannot be resolved.
func NewErrorIterator(err error) Iterator {
	return failedIterator{err: err}
}
