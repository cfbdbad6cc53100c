package calibration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFileName)

	want, err := NewSet(
		Sample{Voltage: 0.8, FanPercent: 5, PWMPercent: 22},
		Sample{Voltage: 2.4, FanPercent: 48, PWMPercent: 51},
		Sample{Voltage: 4.9, FanPercent: 99, PWMPercent: 98.5},
	)
	require.NoError(t, err)
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.Samples(), got.Samples())

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFind(t *testing.T) {
	dir := t.TempDir()

	_, err := Find(dir, "")
	assert.True(t, errors.Is(err, ErrNotFound), "err=%v", err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("1,2,3\n"), 0o644))
	p, err := Find(dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), p)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))
	_, err = Find(dir, "sub.csv")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.Is(err, ErrNotFound), "err=%v", err)
}

func TestList_Recursive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("12345"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "old"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old", "a.csv"), []byte("1"), 0o644))

	files, err := List(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, "b.csv", files[0].Path)
	assert.Equal(t, int64(5), files[0].Size)
	assert.Equal(t, "old", files[1].Path)
	assert.True(t, files[1].Dir)
	assert.Equal(t, "old/a.csv", files[2].Path)
}

func TestList_MissingDir(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestProvide_FromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fan.csv"), []byte("Voltage,FanPercent,PWM\n1,10,20\n2,20,30\n3,30,40\n"), 0o644))

	res, err := Provide(dir, "fan.csv", true)
	require.NoError(t, err)
	assert.Equal(t, SourceFile, res.Source)
	assert.Equal(t, 3, res.Set.Len())
	assert.False(t, res.Created)
	assert.NoError(t, res.Warning)
}

func TestProvide_CreatesDefault(t *testing.T) {
	dir := t.TempDir()

	res, err := Provide(dir, "", true)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, res.Source)
	assert.True(t, res.Created)
	assert.True(t, errors.Is(res.Warning, ErrNotFound))

	onDisk, err := Load(filepath.Join(dir, DefaultFileName))
	require.NoError(t, err)
	assert.Equal(t, Default().Samples(), onDisk.Samples())

	// Second call reads the generated file.
	res, err = Provide(dir, "", true)
	require.NoError(t, err)
	assert.Equal(t, SourceFile, res.Source)
}

func TestProvide_NoCreate(t *testing.T) {
	dir := t.TempDir()
	res, err := Provide(dir, "", false)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, res.Source)
	assert.False(t, res.Created)
	_, statErr := os.Stat(filepath.Join(dir, DefaultFileName))
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestProvide_CreateFailureKeepsDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing-dir")
	res, err := Provide(dir, "", true)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, res.Source)
	assert.False(t, res.Created)
	assert.Error(t, res.Warning)
	assert.Equal(t, MaxSamples, res.Set.Len())
}

func TestProvide_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("h,h,h\n1,x,2\n"), 0o644))
	_, err := Provide(dir, "", true)
	require.Error(t, err)
}
