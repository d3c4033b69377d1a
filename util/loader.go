package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// ExtRaw marks files holding one signed byte per element.
	ExtRaw = ".bin"
	// ExtText marks files holding comma or whitespace separated integers.
	ExtText = ".txt"
)

// SampleFile represents a labeled vector file.
type SampleFile struct {
	// Path is the path to the sample file.
	Path string
	// Label is the expected label, taken from the file name.
	Label string
	// Index is the sample number within its label.
	Index int
	// Data holds the decoded int8 values.
	Data []int8
}

// ListSampleFiles returns the .bin and .txt files in dir sorted by name.
// Names are not parsed, so unlabeled files such as payload.bin are listed.
func ListSampleFiles(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		ext := filepath.Ext(file.Name())
		if ext != ExtRaw && ext != ExtText {
			continue
		}
		paths = append(paths, filepath.Join(dir, file.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDirectorySamples reads all sample files from a directory.
//
// File names follow <label>-<index>.bin or <label>-<index>.txt. Files with
// other extensions are skipped.
//
// Arguments:
// - dir: Directory path containing sample files.
//
// Returns:
// - []SampleFile: The samples sorted by label, then index.
// - error: Error if a file cannot be read or its name or content is malformed.
func LoadDirectorySamples(dir string) ([]SampleFile, error) {
	paths, err := ListSampleFiles(dir)
	if err != nil {
		return nil, err
	}

	samples := make([]SampleFile, 0, len(paths))
	for _, path := range paths {
		label, index, err := ParseSampleName(filepath.Base(path))
		if err != nil {
			return nil, err
		}
		data, err := LoadSample(path)
		if err != nil {
			return nil, err
		}
		samples = append(samples, SampleFile{
			Path:  path,
			Label: label,
			Index: index,
			Data:  data,
		})
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Label != samples[j].Label {
			return samples[i].Label < samples[j].Label
		}
		return samples[i].Index < samples[j].Index
	})

	return samples, nil
}

// ParseSampleName splits a sample file name into its label and index.
func ParseSampleName(name string) (string, int, error) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	sep := strings.LastIndex(base, "-")
	if sep <= 0 {
		return "", 0, errors.Errorf("sample name %q does not match <label>-<index>", name)
	}
	index, err := strconv.Atoi(base[sep+1:])
	if err != nil {
		return "", 0, errors.Wrapf(err, "sample name %q has no numeric index", name)
	}
	return base[:sep], index, nil
}

// LoadSample reads one sample file, decoding it by extension.
func LoadSample(path string) ([]int8, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch filepath.Ext(path) {
	case ExtRaw:
		data := make([]int8, len(raw))
		for i, b := range raw {
			data[i] = int8(b)
		}
		return data, nil
	case ExtText:
		data, err := ParseInt8s(string(raw))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
		return data, nil
	default:
		return nil, errors.Errorf("unsupported sample extension %q", filepath.Ext(path))
	}
}

// ParseInt8s parses integers separated by commas or whitespace.
//
// Arguments:
// - s: Text such as "12, -128, 7" or "12 -128 7".
//
// Returns:
// - []int8: The parsed values.
// - error: Error if a field is not an integer in [-128, 127].
func ParseInt8s(s string) ([]int8, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})

	values := make([]int8, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseInt(f, 10, 8)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid int8 %q", f)
		}
		values = append(values, int8(v))
	}
	return values, nil
}
