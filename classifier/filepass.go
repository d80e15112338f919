package classifier

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FilePassResult summarizes a completed trajectory-file pass.
type FilePassResult struct {
	// Samples is the number of raw samples consumed from the input.
	Samples int

	// Steps is the number of classification decisions written.
	Steps int
}

// ClassifyTrajectoryFile streams raw samples from inputPath, maintains a
// sliding window of the collection's declared window size, and once the
// window is full writes one classification decision per advancing step to
// outputPath. Each output line is
//
//	step argmaxName p0 p1 ... pM-1
//
// applied uniformly across the whole run.
//
// The input is processed in a single pass: memory use is bounded by the
// window, independent of file length. On a mid-stream failure the already
// written decisions remain valid and the error is reported with the
// offending path; the returned result counts the completed steps either way.
func (cl *Classifier) ClassifyTrajectoryFile(ctx context.Context, inputPath, outputPath string) (*FilePassResult, error) {
	if cl.collection.NumModels() == 0 {
		return nil, ErrNotReady
	}
	if cl.inPass.Swap(true) {
		return nil, ErrPassInProgress
	}
	defer cl.inPass.Store(false)

	result := &FilePassResult{}

	in, err := os.Open(inputPath)
	if err != nil {
		return result, fmt.Errorf("classify %s: %w", inputPath, err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return result, fmt.Errorf("classify: create %s: %w", outputPath, err)
	}
	defer out.Close()

	w := bufio.NewWriter(out)
	err = cl.streamDecisions(ctx, in, w, inputPath, result)

	// Keep everything written so far valid even when the pass failed.
	if flushErr := w.Flush(); flushErr != nil && err == nil {
		err = fmt.Errorf("classify: write %s: %w", outputPath, flushErr)
	}
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("classify: write %s: %w", outputPath, closeErr)
	}

	cl.logger.Info("trajectory file pass finished",
		"input", inputPath,
		"samples", result.Samples,
		"steps", result.Steps,
		"error", err,
	)
	return result, err
}

func (cl *Classifier) streamDecisions(ctx context.Context, in *os.File, w *bufio.Writer, inputPath string, result *FilePassResult) error {
	c := cl.collection
	dim := c.Dim()
	windowSize := c.WindowSize()
	names := make([]string, 0, c.NumModels())
	for _, m := range c.Models() {
		names = append(names, m.Name)
	}

	// Sliding window: evicted sample buffers are recycled once the
	// synchronous classification call has returned.
	window := make([][]float32, 0, windowSize)
	var spare []float32

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := cl.controller.AcquireIO(ctx, len(line)+1); err != nil {
			return err
		}
		result.Samples++

		sample := spare
		if sample == nil {
			sample = make([]float32, dim)
		}
		spare = nil
		if err := parseSample(line, sample); err != nil {
			return fmt.Errorf("classify %s: sample %d: %w", inputPath, result.Samples, err)
		}

		if len(window) == windowSize {
			spare = window[0]
			copy(window, window[1:])
			window[windowSize-1] = sample
		} else {
			window = append(window, sample)
		}
		if len(window) < windowSize {
			continue
		}

		probs, err := cl.ClassifySample(window, 0)
		if err != nil {
			return err
		}
		if err := writeDecision(w, result.Steps, names, probs); err != nil {
			return fmt.Errorf("classify: write output: %w", err)
		}
		result.Steps++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("classify %s: %w", inputPath, err)
	}
	return nil
}

func parseSample(line string, dst []float32) error {
	fields := strings.Fields(line)
	if len(fields) != len(dst) {
		return fmt.Errorf("expected %d components, got %d", len(dst), len(fields))
	}
	for i, field := range fields {
		v, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return fmt.Errorf("component %d: %w", i+1, err)
		}
		dst[i] = float32(v)
	}
	return nil
}

// writeDecision emits one output line: the step index, the arg-max model
// name, and the full probability vector.
func writeDecision(w *bufio.Writer, step int, names []string, probs []float32) error {
	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}

	if _, err := fmt.Fprintf(w, "%d %s", step, names[best]); err != nil {
		return err
	}
	for _, p := range probs {
		if _, err := fmt.Fprintf(w, " %.6f", p); err != nil {
			return err
		}
	}
	return w.WriteByte('\n')
}
