package csvout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartSortKey(t *testing.T) {
	tests := []struct {
		path     string
		wantBase string
		wantPart int
	}{
		{"export.csv", "export", 1},
		{"export_part002.csv", "export", 2},
		{"export_part010.csv", "export", 10},
		{"dir/export_part003.csv", "export", 3},
		{"EXPORT_PART002.CSV", "EXPORT", 2},
		{"plain", "plain", 1},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			base, part := partSortKey(tt.path)
			require.Equal(t, tt.wantBase, base)
			require.Equal(t, tt.wantPart, part)
		})
	}
}

func TestMergePartsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")

	w, err := NewPartWriter(path, 3, testColumns)
	require.NoError(t, err)
	total := 8 // 3 + 3 + 2
	for i := 0; i < total; i++ {
		require.NoError(t, w.WriteRow(rowFixture(i)))
	}
	require.NoError(t, w.Close())
	require.Len(t, w.FilesCreated, 3)

	output := filepath.Join(dir, "merged.csv")
	result, err := MergeParts(filepath.Join(dir, "export*.csv"), output)
	require.NoError(t, err)
	require.Equal(t, total, result.DataRows)
	require.Equal(t, w.FilesCreated, result.Files, "parts merge in part order")

	records := readPart(t, output)
	require.Len(t, records, total+1, "one header plus all data rows")
	require.Equal(t, testColumns, records[0])
	for i, record := range records[1:] {
		require.Equal(t, rowFixture(i)["name"], record[1], "row order preserved")
	}
}

func TestMergePartsOrdersNumerically(t *testing.T) {
	dir := t.TempDir()

	// part010 sorts after part002 even though "010" < "02" would hold
	// in a naive lexical comparison of the full names.
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("export.csv", "h\nfirst\n")
	write("export_part010.csv", "h\nlast\n")
	write("export_part002.csv", "h\nsecond\n")

	output := filepath.Join(dir, "merged.csv")
	result, err := MergeParts(filepath.Join(dir, "export*.csv"), output)
	require.NoError(t, err)
	require.Equal(t, 3, result.DataRows)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, []string{"h", "first", "second", "last"},
		strings.Split(strings.TrimRight(string(data), "\n"), "\n"))
}

func TestMergePartsNoMatches(t *testing.T) {
	dir := t.TempDir()
	_, err := MergeParts(filepath.Join(dir, "nothing*.csv"), filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no files match")
}

func TestMergePartsFinalLineWithoutNewline(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("h\nrow1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("h\nrow2\n"), 0o644))

	output := filepath.Join(dir, "merged.csv")
	result, err := MergeParts(filepath.Join(dir, "?.csv"), output)
	require.NoError(t, err)
	require.Equal(t, 2, result.DataRows)
}
