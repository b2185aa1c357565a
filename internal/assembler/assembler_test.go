// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

package assembler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBinaryKey_LowercasesAndStripsNonAlnum(t *testing.T) {
	require.Equal(t, "myreleasename", BinaryKey("My.Release-Name!!"))
}

func TestBatch_AddArticle_SubjectParserPath(t *testing.T) {
	b := NewBatch()
	ok := b.AddArticle(context.Background(), ArticleHeader{
		Subject:   "My.Release.Name [01/10]",
		MessageID: "<a1@example>",
		Bytes:     1000,
		GroupName: "alt.binaries.test",
	}, nil, 0)
	require.True(t, ok)

	bins := b.Binaries()
	require.Len(t, bins, 1)
	require.Equal(t, "My.Release.Name", bins[0].Name)
	require.Equal(t, 10, bins[0].TotalParts)
	require.Equal(t, 1, bins[0].Observed())
}

func TestBatch_AddArticle_PartsAccumulateAcrossCalls(t *testing.T) {
	b := NewBatch()
	for i := 1; i <= 3; i++ {
		ok := b.AddArticle(context.Background(), ArticleHeader{
			Subject:   "My.Release.Name [0" + string(rune('0'+i)) + "/05]",
			MessageID: "<msg@example>",
			Bytes:     500,
		}, nil, 0)
		require.True(t, ok)
	}

	bins := b.Binaries()
	require.Len(t, bins, 1)
	require.Equal(t, 3, bins[0].Observed())
	require.Equal(t, int64(1500), bins[0].SizeSum)
	require.Equal(t, 5, bins[0].TotalParts)
}

func TestBatch_AddArticle_DoesNotOverwriteExistingPart(t *testing.T) {
	b := NewBatch()
	b.AddArticle(context.Background(), ArticleHeader{Subject: "Name [01/02]", Bytes: 100}, nil, 0)
	b.AddArticle(context.Background(), ArticleHeader{Subject: "Name [01/02]", Bytes: 999}, nil, 0)

	bins := b.Binaries()
	require.Equal(t, int64(100), bins[0].SizeSum)
	require.Equal(t, 1, bins[0].Observed())
}

func TestBatch_AddArticle_NoMatchReturnsFalse(t *testing.T) {
	b := NewBatch()
	ok := b.AddArticle(context.Background(), ArticleHeader{Subject: "nothing parseable here"}, nil, 0)
	require.False(t, ok)
	require.Empty(t, b.Binaries())
}

type fakeFetcher struct {
	body []byte
	err  error
}

func (f *fakeFetcher) FetchArticlePrefix(_ context.Context, _ string, _ int) ([]byte, error) {
	return f.body, f.err
}

func TestBatch_AddArticle_YEncFallbackPath(t *testing.T) {
	body := []byte("=ybegin part=2 total=4 line=128 size=100 name=fallback.bin\r\n=yend\r\n")
	b := NewBatch()
	ok := b.AddArticle(context.Background(), ArticleHeader{
		Subject:   "random obfuscated subject yEnc",
		MessageID: "<id@example>",
		Bytes:     100,
	}, &fakeFetcher{body: body}, 0)

	require.True(t, ok)
	bins := b.Binaries()
	require.Len(t, bins, 1)
	require.Equal(t, "fallback.bin", bins[0].Name)
	require.Equal(t, 4, bins[0].TotalParts)
}

func TestBinary_OrderedMessageIDs(t *testing.T) {
	b := NewBatch()
	b.AddArticle(context.Background(), ArticleHeader{Subject: "Name [03/03]", MessageID: "<c@e>"}, nil, 0)
	b.AddArticle(context.Background(), ArticleHeader{Subject: "Name [01/03]", MessageID: "<a@e>"}, nil, 0)
	b.AddArticle(context.Background(), ArticleHeader{Subject: "Name [02/03]", MessageID: "<b@e>"}, nil, 0)

	bins := b.Binaries()
	require.Equal(t, []int{1, 2, 3}, bins[0].OrderedMessageIDs())
}
