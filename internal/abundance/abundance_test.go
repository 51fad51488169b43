package abundance_test

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/genusdiff/internal/abundance"
	"github.com/KaramelBytes/genusdiff/internal/dataset"
)

func wideTable() *dataset.Table {
	return &dataset.Table{
		Name:   "genera.counts.tsv",
		Header: []string{"Sample", "k__Bacteria;g__Dorea;s__x", "k__Bacteria;g__Blautia", "g__Bacteroides"},
		Rows: [][]string{
			{"S1", "10", "0", "30"},
			{"S2", "NA", "5", "5"},
			{"S3", "1", "1", ""},
		},
	}
}

// ---------------------------------------------------------------------------
// Reshape / Pivot
// ---------------------------------------------------------------------------

func TestReshapeKeepsEveryCell(t *testing.T) {
	renamed, coll := abundance.RenameGenera(wideTable())
	assert.Empty(t, coll)
	recs, err := abundance.Reshape(renamed, "Sample")
	require.NoError(t, err)
	require.Len(t, recs, 9)

	assert.Equal(t, abundance.CountRecord{Sample: "S1", Genus: "Dorea", Count: 10}, recs[0])
	assert.Equal(t, abundance.CountRecord{Sample: "S1", Genus: "Blautia", Count: 0}, recs[1])
	assert.True(t, recs[3].Missing, "NA cell must be flagged")
	assert.True(t, recs[8].Missing, "empty cell must be flagged")
}

func TestReshapeErrors(t *testing.T) {
	tbl := wideTable()
	tbl.Header[0] = "SampleID"
	_, err := abundance.Reshape(tbl, "Sample")
	require.ErrorIs(t, err, abundance.ErrNoSampleColumn)

	bad := wideTable()
	bad.Rows[0][1] = "ten"
	_, err = abundance.Reshape(bad, "Sample")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 1")

	neg := wideTable()
	neg.Rows[1][2] = "-3"
	_, err = abundance.Reshape(neg, "Sample")
	require.Error(t, err)
}

func TestPivotRoundTrip(t *testing.T) {
	renamed, _ := abundance.RenameGenera(wideTable())
	recs, err := abundance.Reshape(renamed, "Sample")
	require.NoError(t, err)

	wide, err := abundance.Pivot("wide", "Sample", recs)
	require.NoError(t, err)
	again, err := abundance.Reshape(wide, "Sample")
	require.NoError(t, err)

	type cell struct {
		count   float64
		missing bool
	}
	toMap := func(rs []abundance.CountRecord) map[[2]string]cell {
		m := map[[2]string]cell{}
		for _, r := range rs {
			m[[2]string{r.Sample, r.Genus}] = cell{r.Count, r.Missing}
		}
		return m
	}
	if diff := cmp.Diff(toMap(recs), toMap(again), cmp.AllowUnexported(cell{})); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPivotRejectsDuplicateCells(t *testing.T) {
	recs := []abundance.CountRecord{
		{Sample: "S1", Genus: "Dorea", Count: 1},
		{Sample: "S1", Genus: "Dorea", Count: 2},
	}
	_, err := abundance.Pivot("wide", "Sample", recs)
	require.ErrorIs(t, err, abundance.ErrDuplicateCell)
}

func TestRenameCollisionsPassThroughOrMerge(t *testing.T) {
	tbl := &dataset.Table{
		Name:   "dup.tsv",
		Header: []string{"Sample", "g__Dorea;s__a", "g__Dorea;s__b"},
		Rows:   [][]string{{"S1", "2", "3"}, {"S2", "NA", "4"}, {"S3", "NA", "NA"}},
	}
	renamed, coll := abundance.RenameGenera(tbl)
	require.Len(t, coll, 1)
	assert.Equal(t, "Dorea", coll[0].Genus)

	recs, err := abundance.Reshape(renamed, "Sample")
	require.NoError(t, err)
	assert.Len(t, recs, 6, "passthrough keeps one record per source column")

	merged := abundance.MergeDuplicates(recs)
	want := []abundance.CountRecord{
		{Sample: "S1", Genus: "Dorea", Count: 5},
		{Sample: "S2", Genus: "Dorea", Count: 4},
		{Sample: "S3", Genus: "Dorea", Missing: true},
	}
	if diff := cmp.Diff(want, merged); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

// ---------------------------------------------------------------------------
// Clean / Normalize
// ---------------------------------------------------------------------------

func TestCleanCountsDropsMissing(t *testing.T) {
	recs := []abundance.CountRecord{
		{Sample: "S1", Genus: "Dorea", Count: 1},
		{Sample: "S1", Genus: "Blautia", Missing: true},
		{Sample: "NA", Genus: "Dorea", Count: 2},
		{Sample: "S2", Genus: "", Count: 2},
	}
	got := abundance.CleanCounts(recs)
	require.Len(t, got, 1)
	assert.Equal(t, "Dorea", got[0].Genus)
}

func TestNormalizeSumsToOne(t *testing.T) {
	renamed, _ := abundance.RenameGenera(wideTable())
	recs, err := abundance.Reshape(renamed, "Sample")
	require.NoError(t, err)
	ra := abundance.Normalize(abundance.CleanCounts(recs), abundance.ZeroTotalNaN)

	sums := map[string]float64{}
	for _, r := range ra {
		sums[r.Sample] += r.RelativeAbundance
	}
	for s, v := range sums {
		assert.InDelta(t, 1.0, v, 1e-9, "sample %s", s)
	}
	assert.InDelta(t, 0.25, ra[0].RelativeAbundance, 1e-12)
}

func TestNormalizeZeroTotalPolicies(t *testing.T) {
	recs := []abundance.CountRecord{
		{Sample: "Z", Genus: "Dorea", Count: 0},
		{Sample: "Z", Genus: "Blautia", Count: 0},
		{Sample: "S", Genus: "Dorea", Count: 4},
	}
	assert.Equal(t, []string{"Z"}, abundance.ZeroTotalSamples(recs))

	nan := abundance.Normalize(recs, abundance.ZeroTotalNaN)
	require.Len(t, nan, 3)
	assert.True(t, math.IsNaN(nan[0].RelativeAbundance))
	assert.Equal(t, 1.0, nan[2].RelativeAbundance)

	skip := abundance.Normalize(recs, abundance.ZeroTotalSkip)
	require.Len(t, skip, 1)
	assert.Equal(t, "S", skip[0].Sample)

	zero := abundance.Normalize(recs, abundance.ZeroTotalZero)
	require.Len(t, zero, 3)
	assert.Equal(t, 0.0, zero[1].RelativeAbundance)

	p, err := abundance.ParseZeroTotalPolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, abundance.ZeroTotalSkip, p)
	for _, bad := range []string{"impute", "drop", "0"} {
		_, err = abundance.ParseZeroTotalPolicy(bad)
		require.Error(t, err, bad)
	}
}

// ---------------------------------------------------------------------------
// Metadata / Join
// ---------------------------------------------------------------------------

func TestMetadataReduceAndClean(t *testing.T) {
	tbl := &dataset.Table{
		Name:   "metadata.tsv",
		Header: []string{"Sample", "Age", "Study.Group"},
		Rows:   [][]string{{"S1", "40", "UC"}, {"S2", "33", "NA"}, {"", "20", "CD"}, {"S4", "51", " nonIBD "}},
	}
	meta, err := abundance.Metadata(tbl, "Sample", "Study.Group")
	require.NoError(t, err)
	require.Len(t, meta, 4)
	clean := abundance.CleanMetadata(meta)
	want := []abundance.MetadataRecord{{Sample: "S1", Group: "UC"}, {Sample: "S4", Group: "nonIBD"}}
	if diff := cmp.Diff(want, clean); diff != "" {
		t.Fatalf("clean metadata mismatch (-want +got):\n%s", diff)
	}

	_, err = abundance.Metadata(tbl, "Sample", "Diagnosis")
	require.Error(t, err)
}

func TestJoinDropsOrphansExactly(t *testing.T) {
	var ra []abundance.RelativeRecord
	for _, s := range []string{"S1", "S2", "S3", "ORPHAN1", "ORPHAN2"} {
		for _, g := range []string{"Dorea", "Blautia", "Bacteroides"} {
			ra = append(ra, abundance.RelativeRecord{CountRecord: abundance.CountRecord{Sample: s, Genus: g, Count: 1}, RelativeAbundance: 1.0 / 3})
		}
	}
	meta := []abundance.MetadataRecord{
		{Sample: "S1", Group: "UC"},
		{Sample: "S2", Group: "CD"},
		{Sample: "S3", Group: "nonIBD"},
		{Sample: "META_ONLY", Group: "UC"},
	}
	merged, st := abundance.Join(ra, meta, []string{"UC", "CD", "nonIBD"})
	assert.Len(t, merged, len(ra)-2*3, "each orphan sample contributes one row per genus")
	assert.Equal(t, []string{"ORPHAN1", "ORPHAN2"}, st.OrphanCountSamples)
	assert.Equal(t, []string{"META_ONLY"}, st.OrphanMetadataSamples)
	assert.Zero(t, st.ExcludedGroupRows)
	for _, m := range merged {
		assert.NotContains(t, m.Sample, "ORPHAN")
	}
}

func TestJoinFiltersGroups(t *testing.T) {
	ra := []abundance.RelativeRecord{
		{CountRecord: abundance.CountRecord{Sample: "S1", Genus: "Dorea"}, RelativeAbundance: 1},
		{CountRecord: abundance.CountRecord{Sample: "S2", Genus: "Dorea"}, RelativeAbundance: 1},
	}
	meta := []abundance.MetadataRecord{{Sample: "S1", Group: "UC"}, {Sample: "S2", Group: "IC"}}
	merged, st := abundance.Join(ra, meta, []string{"UC", "CD", "nonIBD"})
	require.Len(t, merged, 1)
	assert.Equal(t, "UC", merged[0].Group)
	assert.Equal(t, 1, st.ExcludedGroupRows)
}

func TestTablesRenderNA(t *testing.T) {
	recs := []abundance.RelativeRecord{
		{CountRecord: abundance.CountRecord{Sample: "S1", Genus: "Dorea", Count: 0}, RelativeAbundance: math.NaN()},
	}
	tbl := abundance.RelativeTable("x.tsv", recs)
	assert.Equal(t, []string{"Sample", "Bacterial_Group", "Count", "Relative_Abundance"}, tbl.Header)
	if diff := cmp.Diff([][]string{{"S1", "Dorea", "0", "NA"}}, tbl.Rows, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}
