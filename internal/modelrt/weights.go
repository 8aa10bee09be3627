package modelrt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// WeightFiles lists the *.gguf files directly inside dir, sorted by name.
func WeightFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read model dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".gguf") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// precisionMarkers are file name fragments that identify a quantization.
var precisionMarkers = map[Precision][]string{
	Precision8Bit:     {"q8", "int8"},
	Precision4Bit:     {"q4", "int4"},
	PrecisionStandard: {"f16", "bf16", "f32"},
}

// SelectWeights picks the weight file in dir that best matches precision.
// A directory with a single weight file always yields that file.
func SelectWeights(dir string, precision Precision) (string, error) {
	files, err := WeightFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no .gguf weights in %s", dir)
	}
	if len(files) == 1 {
		return files[0], nil
	}
	for _, f := range files {
		name := strings.ToLower(filepath.Base(f))
		for _, m := range precisionMarkers[precision] {
			if strings.Contains(name, m) {
				return f, nil
			}
		}
	}
	return files[0], nil
}
