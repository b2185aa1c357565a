// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

// Package assembler implements the Binary Assembler (C7, §4.6): per
// article-batch aggregation of (subject, part, total) tuples into
// in-memory Binary records keyed by a normalized binary_key, ready for
// the Release Materializer to evaluate against its completion triggers.
package assembler

import (
	"context"
	"regexp"
	"strings"

	"github.com/tomtom215/cartographus/internal/subject"
	"github.com/tomtom215/cartographus/internal/yenc"
)

// ArticleHeader is the subset of an NNTP OVER/HEAD tuple the assembler
// needs. Declared locally (not imported from internal/nntp) so this
// package has no dependency on the wire client.
type ArticleHeader struct {
	ArticleNum int64
	Subject    string
	From       string
	Date       string
	MessageID  string
	Bytes      int64
	GroupName  string
}

// ArticleFetcher is the body-fetch capability the yEnc fallback path
// needs; internal/nntp.Client satisfies it structurally.
type ArticleFetcher interface {
	FetchArticlePrefix(ctx context.Context, idOrMessageID string, maxBytes int) ([]byte, error)
}

// Segment is one observed part of a Binary.
type Segment struct {
	MessageID string
	Bytes     int64
}

// Binary is one in-progress multi-part posting within a batch.
type Binary struct {
	Key        string
	Name       string
	GroupName  string
	Poster     string
	Subject    string
	Date       string
	Parts      map[int]Segment
	TotalParts int
	SizeSum    int64
}

// Observed returns the number of distinct parts seen so far.
func (b *Binary) Observed() int { return len(b.Parts) }

// OrderedMessageIDs returns the binary's message ids in ascending part
// order, for NZB segment emission.
func (b *Binary) OrderedMessageIDs() []int {
	nums := make([]int, 0, len(b.Parts))
	for n := range b.Parts {
		nums = append(nums, n)
	}
	for i := 1; i < len(nums); i++ {
		for j := i; j > 0 && nums[j-1] > nums[j]; j-- {
			nums[j-1], nums[j] = nums[j], nums[j-1]
		}
	}
	return nums
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// BinaryKey reduces name to the assembler's aggregation key: lowercase
// with every non-alphanumeric character removed (§4.6).
func BinaryKey(name string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(name), "")
}

// Batch accumulates Binary records across one scheduler pass over a
// range of articles. Not safe for concurrent use; a worker owns one
// Batch for its article range.
type Batch struct {
	binaries map[string]*Binary
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{binaries: make(map[string]*Binary)}
}

// AddArticle resolves (name, part, total) for a and folds it into the
// matching Binary, creating one if this is the first part seen for its
// key. Returns false if no name/part could be resolved (the article is
// skipped, per §4.6).
func (b *Batch) AddArticle(ctx context.Context, a ArticleHeader, fetcher ArticleFetcher, maxBytes int) bool {
	name, part, total, ok := resolveNamePart(ctx, a, fetcher, maxBytes)
	if !ok {
		return false
	}

	key := BinaryKey(name)
	bin := b.binaries[key]
	if bin == nil {
		bin = &Binary{
			Key:       key,
			Name:      name,
			GroupName: a.GroupName,
			Poster:    a.From,
			Subject:   a.Subject,
			Date:      a.Date,
			Parts:     make(map[int]Segment),
		}
		b.binaries[key] = bin
	}

	// New parts never overwrite an existing part for the same part_num.
	if _, exists := bin.Parts[part]; !exists {
		bin.Parts[part] = Segment{MessageID: a.MessageID, Bytes: a.Bytes}
		bin.SizeSum += a.Bytes
	}
	// total_parts is monotonically non-decreasing when updated.
	if total > bin.TotalParts {
		bin.TotalParts = total
	}
	return true
}

// resolveNamePart tries the Subject Parser first, falling back to the
// yEnc header (via a body-prefix fetch) when the subject looks
// yEnc-decorated or a message id is available to fetch with (§4.6).
func resolveNamePart(ctx context.Context, a ArticleHeader, fetcher ArticleFetcher, maxBytes int) (name string, part, total int, ok bool) {
	if r, ok := subject.Parse(a.Subject); ok {
		return r.Name, r.Part, r.Total, true
	}

	lower := strings.ToLower(a.Subject)
	looksYEnc := strings.Contains(lower, "yenc")
	if (!looksYEnc && a.MessageID == "") || fetcher == nil || a.MessageID == "" {
		return "", 0, 0, false
	}

	if maxBytes <= 0 {
		maxBytes = yenc.DefaultMaxBytes
	}
	body, err := fetcher.FetchArticlePrefix(ctx, a.MessageID, maxBytes)
	if err != nil {
		return "", 0, 0, false
	}

	dec := yenc.Decode(body, maxBytes)
	if !dec.Found || dec.Headers.Name == "" || dec.Headers.Part <= 0 {
		return "", 0, 0, false
	}
	t := dec.Headers.Total
	if t <= 0 {
		t = dec.Headers.Part
	}
	return dec.Headers.Name, dec.Headers.Part, t, true
}

// Binaries returns a snapshot of every Binary accumulated so far, for the
// Release Materializer to evaluate.
func (b *Batch) Binaries() []*Binary {
	out := make([]*Binary, 0, len(b.binaries))
	for _, bin := range b.binaries {
		out = append(out, bin)
	}
	return out
}
