// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bamprovider

import (
	"github.com/grailbio/base/errors"
	gbam "github.com/grailbio/bamdepth/encoding/bam"
	"github.com/grailbio/hts/sam"
)

// RefByName finds a sam.Reference with the given name. It returns nil if a
// reference is not found.
func RefByName(h *sam.Header, refName string) *sam.Reference {
	for _, ref := range h.Refs() {
		if ref.Name() == refName {
			return ref
		}
	}
	return nil
}

// NewRefIterator creates an iterator for the reads overlapping the half-open
// range [refName:start, refName:limit). Start and limit are both base zero.
func NewRefIterator(p Provider, refName string, start, limit int) Iterator {
	h, err := p.GetHeader()
	if err != nil {
		return NewErrorIterator(err)
	}
	ref := RefByName(h, refName)
	if ref == nil {
		return NewErrorIterator(errors.E(errors.NotExist, "bamprovider.NewRefIterator: reference", refName, "not found"))
	}
	return p.NewIterator(gbam.NewRefShard(ref, start, limit))
}

// SameReferences checks that h0 and h1 list the same reference names and
// lengths in the same order, so that reference IDs from either header refer
// to the same sequence.
func SameReferences(h0, h1 *sam.Header) error {
	r0, r1 := h0.Refs(), h1.Refs()
	if len(r0) != len(r1) {
		return errors.E(errors.Invalid, "reference dictionaries differ in size:", len(r0), "vs", len(r1))
	}
	for i := range r0 {
		if r0[i].Name() != r1[i].Name() || r0[i].Len() != r1[i].Len() {
			return errors.E(errors.Invalid, "reference dictionaries differ at",
				r0[i].Name(), "vs", r1[i].Name())
		}
	}
	return nil
}
