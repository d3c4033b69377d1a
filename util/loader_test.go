package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

func TestLoadDirectorySamples(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "yes-2.txt", []byte("1, 2, -3\n"))
	writeFile(t, dir, "yes-10.bin", []byte{0x80, 0x7f, 0x00})
	writeFile(t, dir, "_silence_-0.txt", []byte("-128 127"))
	writeFile(t, dir, "notes.md", []byte("ignored"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))

	samples, err := LoadDirectorySamples(dir)
	require.NoError(t, err)
	require.Len(t, samples, 3)

	assert.Equal(t, "_silence_", samples[0].Label)
	assert.Equal(t, []int8{-128, 127}, samples[0].Data)

	assert.Equal(t, "yes", samples[1].Label)
	assert.Equal(t, 2, samples[1].Index)
	assert.Equal(t, []int8{1, 2, -3}, samples[1].Data)

	assert.Equal(t, 10, samples[2].Index)
	assert.Equal(t, []int8{-128, 127, 0}, samples[2].Data)
	assert.Equal(t, filepath.Join(dir, "yes-10.bin"), samples[2].Path)
}

func TestLoadDirectorySamplesErrors(t *testing.T) {
	_, err := LoadDirectorySamples(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "nolabel.txt", []byte("1"))
	_, err = LoadDirectorySamples(dir)
	assert.ErrorContains(t, err, "nolabel.txt")

	dir = t.TempDir()
	writeFile(t, dir, "yes-0.txt", []byte("1, 300"))
	_, err = LoadDirectorySamples(dir)
	assert.ErrorContains(t, err, `"300"`)
}

func TestListSampleFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "payload.bin", []byte{0x01})
	writeFile(t, dir, "capture 2.txt", []byte("1"))
	writeFile(t, dir, "a.txt", []byte("not parsed"))
	writeFile(t, dir, "notes.md", []byte("ignored"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "frames.bin"), 0o755))

	paths, err := ListSampleFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.txt"),
		filepath.Join(dir, "capture 2.txt"),
		filepath.Join(dir, "payload.bin"),
	}, paths)

	_, err = ListSampleFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseSampleName(t *testing.T) {
	label, index, err := ParseSampleName("_unknown_-17.bin")
	require.NoError(t, err)
	assert.Equal(t, "_unknown_", label)
	assert.Equal(t, 17, index)

	_, _, err = ParseSampleName("-3.bin")
	assert.Error(t, err)

	_, _, err = ParseSampleName("yes-x.bin")
	assert.Error(t, err)
}

func TestParseInt8s(t *testing.T) {
	values, err := ParseInt8s(" 5,-128\t127 \n0,")
	require.NoError(t, err)
	assert.Equal(t, []int8{5, -128, 127, 0}, values)

	values, err = ParseInt8s("")
	require.NoError(t, err)
	assert.Empty(t, values)

	_, err = ParseInt8s("1, -129")
	assert.Error(t, err)

	_, err = ParseInt8s("1, two")
	assert.Error(t, err)
}
