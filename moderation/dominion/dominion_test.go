package dominion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestStaticDirectoryFile(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	p := filepath.Join(t.TempDir(), "dominions.json")
	require.NoError(os.WriteFile(p, []byte(`{"north": ["t1", "t2"], "south": ["t3"]}`), 0o644))

	d := NewStaticDirectory()
	require.NoError(d.LoadFromFileJSON(p))

	dom, err := d.DominionOf(ctx, "t2")
	assert.NoError(err)
	assert.Equal("north", dom)
	dom, err = d.DominionOf(ctx, "t3")
	assert.NoError(err)
	assert.Equal("south", dom)

	_, err = d.DominionOf(ctx, "t9")
	assert.True(errors.Is(err, ErrUnknownTerritory))

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(os.WriteFile(bad, []byte(`{"north": ["t1"], "south": ["t1"]}`), 0o644))
	assert.Error(NewStaticDirectory().LoadFromFileJSON(bad))
	assert.Error(NewStaticDirectory().LoadFromFileJSON(filepath.Join(t.TempDir(), "missing.json")))
}

func TestGormDirectory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "dom.sqlite")), &gorm.Config{})
	require.NoError(err)
	d := NewGormDirectory(db)
	require.NoError(d.AutoMigrate())

	src := NewStaticDirectory()
	src.Add("north", "t1", "t2")
	require.NoError(d.Import(ctx, src))

	dom, err := d.DominionOf(ctx, "t1")
	assert.NoError(err)
	assert.Equal("north", dom)

	// reassignment
	require.NoError(d.Assign(ctx, "south", "t1"))
	dom, err = d.DominionOf(ctx, "t1")
	assert.NoError(err)
	assert.Equal("south", dom)

	_, err = d.DominionOf(ctx, "nope")
	assert.True(errors.Is(err, ErrUnknownTerritory))
}

type countingDirectory struct {
	inner Directory
	calls int
	fail  error
}

func (c *countingDirectory) DominionOf(ctx context.Context, territoryID string) (string, error) {
	c.calls++
	if c.fail != nil {
		return "", c.fail
	}
	return c.inner.DominionOf(ctx, territoryID)
}

func TestCacheDirectory(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	src := NewStaticDirectory()
	src.Add("north", "t1")
	inner := &countingDirectory{inner: src}
	d := NewCacheDirectory(inner, 100, time.Hour)

	for i := 0; i < 3; i++ {
		dom, err := d.DominionOf(ctx, "t1")
		assert.NoError(err)
		assert.Equal("north", dom)
	}
	assert.Equal(1, inner.calls)

	for i := 0; i < 2; i++ {
		_, err := d.DominionOf(ctx, "t2")
		assert.True(errors.Is(err, ErrUnknownTerritory))
	}
	assert.Equal(2, inner.calls)

	// transient errors are retried
	inner.fail = errors.New("db down")
	d.Purge("t1")
	_, err := d.DominionOf(ctx, "t1")
	assert.Error(err)
	_, err = d.DominionOf(ctx, "t1")
	assert.Error(err)
	assert.Equal(4, inner.calls)
}
