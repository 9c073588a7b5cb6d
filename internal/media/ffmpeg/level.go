package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"math"
	"strconv"
	"strings"
)

// MeasureLevel returns the gain in dB that brings file's integrated loudness
// to target. A measurement that cannot be parsed yields 0.
func MeasureLevel(ctx context.Context, runner Runner, binary, file string, target float64) (float64, error) {
	output, err := runner.Run(ctx, Command{Name: binary, Args: LoudnessArgs(file)})
	loudness, ok := ParseIntegratedLoudness(output)
	if !ok {
		return 0, err
	}
	if !isNormal(loudness) {
		loudness = target
	}
	return target - loudness, err
}

// ParseIntegratedLoudness extracts the `Input Integrated:` value from a
// loudnorm summary.
func ParseIntegratedLoudness(output []byte) (float64, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Input Integrated:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "Input Integrated:"))
		if len(fields) == 0 {
			return 0, false
		}
		// -inf (digital silence) parses; anything else unreadable counts as 0
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			v = 0
		}
		return v, true
	}
	return 0, false
}

func isNormal(v float64) bool {
	return v != 0 && !math.IsInf(v, 0) && !math.IsNaN(v) && math.Abs(v) >= 0x1p-1022
}
