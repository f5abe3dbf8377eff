package csvout

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var partSuffixRe = regexp.MustCompile(`(?i)_part(\d+)\.csv$`)

// MergeResult reports what a merge produced.
type MergeResult struct {
	// Files lists the merged inputs in the order they were concatenated.
	Files []string

	// DataRows counts data lines (headers excluded) in the output.
	DataRows int
}

// partSortKey orders part files by base name, then numeric part index,
// so export.csv sorts before export_part002.csv regardless of lexical order.
func partSortKey(path string) (string, int) {
	name := filepath.Base(path)
	if m := partSuffixRe.FindStringSubmatch(name); m != nil {
		index, _ := strconv.Atoi(m[1])
		return partSuffixRe.ReplaceAllString(name, ""), index
	}
	if strings.HasSuffix(strings.ToLower(name), ".csv") {
		return name[:len(name)-4], 1
	}
	return name, 1
}

// MergeParts concatenates the CSV files matching pattern into output.
// The header is taken from the first file only; each subsequent file
// contributes its data lines with the first line skipped.
func MergeParts(pattern, output string) (*MergeResult, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}

	sort.SliceStable(files, func(i, j int) bool {
		baseI, partI := partSortKey(files[i])
		baseJ, partJ := partSortKey(files[j])
		if baseI != baseJ {
			return baseI < baseJ
		}
		return partI < partJ
	})

	out, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	result := &MergeResult{Files: files}
	writer := bufio.NewWriter(out)

	for i, path := range files {
		rows, err := appendFile(writer, path, i > 0)
		if err != nil {
			return nil, err
		}
		result.DataRows += rows
	}

	if err := writer.Flush(); err != nil {
		return nil, fmt.Errorf("flush output: %w", err)
	}
	if err := out.Close(); err != nil {
		return nil, fmt.Errorf("close output: %w", err)
	}
	return result, nil
}

// appendFile copies one input into the writer, counting data lines.
// When skipHeader is set the first line is dropped.
func appendFile(writer *bufio.Writer, path string, skipHeader bool) (int, error) {
	src, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer src.Close()

	reader := bufio.NewReader(src)
	rows := 0
	lineNo := 0

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			if lineNo > 0 || !skipHeader {
				if _, werr := writer.WriteString(line); werr != nil {
					return rows, fmt.Errorf("write output: %w", werr)
				}
			}
			// Line 0 is always a header, whether written or skipped.
			if lineNo > 0 {
				rows++
			}
			lineNo++
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read %s: %w", path, err)
		}
	}
	return rows, nil
}
