package flagstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testFlagStoreBasics(t *testing.T, fs FlagStore) {
	assert := assert.New(t)
	ctx := context.Background()

	l, err := fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Empty(l)

	assert.NoError(fs.Add(ctx, "test1", []string{"red", "green"}))
	assert.NoError(fs.Add(ctx, "test1", []string{"red", "blue"}))
	l, err = fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Equal([]string{"blue", "green", "red"}, l)

	assert.NoError(fs.Remove(ctx, "test1", []string{"red", "blue", "orange"}))
	l, err = fs.Get(ctx, "test1")
	assert.NoError(err)
	assert.Equal([]string{"green"}, l)
	assert.NoError(fs.Remove(ctx, "test1", []string{"green"}))
	assert.NoError(fs.Remove(ctx, "missing", []string{"green"}))
}

func TestMemFlagStoreBasics(t *testing.T) {
	testFlagStoreBasics(t, NewMemFlagStore())
}

func TestRedisFlagStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	fs, err := NewRedisFlagStore("redis://localhost:6379/0")
	if err != nil {
		t.Fatal(err)
	}
	testFlagStoreBasics(t, fs)
}
