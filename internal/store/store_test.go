package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zack-zzq/modpack-localizer/internal/lang"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir(), "zh_cn")
}

func TestWriteEntriesCreatesPresenceMarker(t *testing.T) {
	s := newTestStore(t)
	unit := UnitKey{Category: CategoryMod, Name: "botania"}

	assert.False(t, s.Exists("pack-a", StageExtracted, unit))

	err := s.WriteEntries("pack-a", StageExtracted, unit, lang.Entries{"key1": "Hello"})
	require.NoError(t, err)

	assert.True(t, s.Exists("pack-a", StageExtracted, unit))

	got, err := s.ReadEntries("pack-a", StageExtracted, unit)
	require.NoError(t, err)
	assert.Equal(t, lang.Entries{"key1": "Hello"}, got)
}

func TestWriteEmptyEntriesStillPresent(t *testing.T) {
	s := newTestStore(t)
	unit := UnitKey{Category: CategoryMod, Name: "libonly"}

	require.NoError(t, s.WriteEntries("pack-a", StageExtracted, unit, lang.Entries{}))

	assert.True(t, s.Exists("pack-a", StageExtracted, unit))
	got, err := s.ReadEntries("pack-a", StageExtracted, unit)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriteEntriesReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	unit := UnitKey{Category: CategoryMod, Name: "botania"}

	require.NoError(t, s.WriteEntries("pack-a", StageTranslated, unit, lang.Entries{"k": "old"}))
	require.NoError(t, s.WriteEntries("pack-a", StageTranslated, unit, lang.Entries{"k": "new"}))

	got, err := s.ReadEntries("pack-a", StageTranslated, unit)
	require.NoError(t, err)
	assert.Equal(t, "new", got["k"])
}

func TestReadEntriesNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReadEntries("pack-a", StageTranslated, UnitKey{Category: CategoryMod, Name: "ghost"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTranslatedFileUsesTargetLang(t *testing.T) {
	s := newTestStore(t)
	unit := SingletonUnit(CategoryKubeJS)

	assert.Equal(t, "en_us.json", filepath.Base(s.EntriesPath("p", StageExtracted, unit)))
	assert.Equal(t, "zh_cn.json", filepath.Base(s.EntriesPath("p", StageTranslated, unit)))
}

func TestListUnitsStableOrder(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteEntries("p", StageExtracted, UnitKey{CategoryMod, "zeta"}, lang.Entries{}))
	require.NoError(t, s.WriteEntries("p", StageExtracted, UnitKey{CategoryMod, "alpha"}, lang.Entries{}))
	require.NoError(t, s.WriteEntries("p", StageExtracted, SingletonUnit(CategoryFTBQuests), lang.Entries{}))
	require.NoError(t, s.WriteEntries("p", StageExtracted, SingletonUnit(CategoryKubeJS), lang.Entries{}))

	units, err := s.ListUnits("p", StageExtracted)
	require.NoError(t, err)

	assert.Equal(t, []UnitKey{
		SingletonUnit(CategoryFTBQuests),
		SingletonUnit(CategoryKubeJS),
		{CategoryMod, "alpha"},
		{CategoryMod, "zeta"},
	}, units)
}

func TestListUnitsSkipsAbsentCategories(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteEntries("p", StageExtracted, UnitKey{CategoryMod, "alpha"}, lang.Entries{}))

	units, err := s.ListUnits("p", StageExtracted)
	require.NoError(t, err)
	assert.Equal(t, []UnitKey{{CategoryMod, "alpha"}}, units)
}

func TestListUnitsIgnoresStagingLeftovers(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.WriteEntries("p", StageExtracted, UnitKey{CategoryMod, "alpha"}, lang.Entries{}))
	// Simulate a crash that left a temp staging dir behind.
	leftover := filepath.Join(s.CategoryDir("p", StageExtracted, CategoryMod), ".alpha-tmp123")
	require.NoError(t, os.MkdirAll(leftover, 0o755))

	units, err := s.ListUnits("p", StageExtracted)
	require.NoError(t, err)
	assert.Equal(t, []UnitKey{{CategoryMod, "alpha"}}, units)
}

func TestDeleteUnitDirInvalidates(t *testing.T) {
	s := newTestStore(t)
	unit := UnitKey{Category: CategoryMod, Name: "botania"}

	require.NoError(t, s.WriteEntries("p", StageTranslated, unit, lang.Entries{"k": "v"}))
	require.NoError(t, os.RemoveAll(s.UnitDir("p", StageTranslated, unit)))

	assert.False(t, s.Exists("p", StageTranslated, unit))
	_, err := s.ReadEntries("p", StageTranslated, unit)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategoryExists(t *testing.T) {
	s := newTestStore(t)

	assert.False(t, s.CategoryExists("p", StageExtracted, CategoryMod))
	require.NoError(t, s.WriteEntries("p", StageExtracted, UnitKey{CategoryMod, "alpha"}, lang.Entries{}))
	assert.True(t, s.CategoryExists("p", StageExtracted, CategoryMod))
	assert.False(t, s.CategoryExists("p", StageExtracted, CategoryFTBQuests))
}
