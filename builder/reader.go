package builder

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// labeledSample is one training record: a label plus a raw feature vector.
type labeledSample struct {
	label  string
	vector []float32
	record int // 1-based record number in the input, for diagnostics
}

// readLabeled reads whitespace-separated training records of the form
//
//	label v1 v2 ... vd
//
// Blank lines and lines starting with '#' are skipped. Every vector must
// have exactly dim components; a mismatch fails with ErrDimensionMismatch
// naming the offending record.
func readLabeled(path string, dim int) ([]labeledSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	var samples []labeledSample
	record := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		record++

		fields := strings.Fields(line)
		if len(fields)-1 != dim {
			return nil, &ErrDimensionMismatch{Record: record, Expected: dim, Actual: len(fields) - 1}
		}

		vec := make([]float32, dim)
		for i, field := range fields[1:] {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, fmt.Errorf("read %s: record %d: component %d: %w", path, record, i+1, err)
			}
			vec[i] = float32(v)
		}

		samples = append(samples, labeledSample{
			label:  fields[0],
			vector: vec,
			record: record,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return samples, nil
}
