package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteBatch(t *testing.T) {
	pool, factory := testPool(t, PoolConfig{})
	factory.SetPage("https://a.test/1", "Page One", "Body of page one.\n\nMore text.")
	factory.SetPage("https://a.test/2", "Page Two", "Body of page two.")

	results, err := pool.Execute(context.Background(), []Op{
		{URL: "https://a.test/1", Extract: true},
		{URL: "https://a.test/2", Extract: true, Screenshot: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	byURL := map[string]OpResult{}
	for _, r := range results {
		byURL[r.URL] = r
	}

	one := byURL["https://a.test/1"]
	assert.Empty(t, one.Error)
	assert.Equal(t, "Page One", one.Title)
	assert.Contains(t, one.Content, "Body of page one.")
	assert.NotEmpty(t, one.Fragments)

	two := byURL["https://a.test/2"]
	assert.Empty(t, two.Error)
	assert.NotEmpty(t, two.Screenshot)
}

func TestExecuteBatchFailureIsolation(t *testing.T) {
	pool, factory := testPool(t, PoolConfig{})
	factory.SetPage("https://a.test/ok", "OK", "Readable text.")
	factory.FailText("https://a.test/bad", errors.New("render exploded"))

	results, err := pool.Execute(context.Background(), []Op{
		{URL: "https://a.test/bad", Extract: true},
		{URL: "https://a.test/ok", Extract: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Contains(t, results[0].Error, "render exploded")
	assert.Empty(t, results[1].Error)
	assert.Contains(t, results[1].Content, "Readable text.")
}

func TestExecuteBatchSizeLimit(t *testing.T) {
	pool, _ := testPool(t, PoolConfig{})

	ops := make([]Op, MaxBatchOps+1)
	for i := range ops {
		ops[i] = Op{URL: "https://a.test", Extract: true}
	}
	_, err := pool.Execute(context.Background(), ops)
	assert.Error(t, err)
}

func TestExecuteRejectsNetworkInterception(t *testing.T) {
	pool, _ := testPool(t, PoolConfig{})

	results, err := pool.Execute(context.Background(), []Op{
		{URL: "https://a.test", InterceptNetwork: true},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Error, "not supported")
}

func TestExecuteEmptyBatch(t *testing.T) {
	pool, _ := testPool(t, PoolConfig{})
	results, err := pool.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}
