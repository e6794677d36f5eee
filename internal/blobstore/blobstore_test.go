package blobstore

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicURLEscapesKey(t *testing.T) {
	u, err := publicURL("https://cdn.example.com/", "labels", "etiquetas/1700000000_guía envío.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/labels/etiquetas/1700000000_gu%C3%ADa%20env%C3%ADo.pdf", u)
}

func TestPublicURLKeepsPercentInKey(t *testing.T) {
	for key, want := range map[string]string{
		"etiquetas/1_50%off.pdf": "http://localhost:9000/labels/etiquetas/1_50%25off.pdf",
		"etiquetas/1_a%20b.pdf":  "http://localhost:9000/labels/etiquetas/1_a%2520b.pdf",
	} {
		u, err := publicURL("http://localhost:9000", "labels", key)
		require.NoError(t, err)
		assert.Equal(t, want, u, key)
	}
}

func TestResolveDownloadURLDefaultsBucket(t *testing.T) {
	s := &Store{bucket: "labels", publicBase: "http://localhost:9000"}
	u, err := s.ResolveDownloadURL(context.Background(), Ref{Key: "etiquetas/1_a.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/labels/etiquetas/1_a.pdf", u)
}

func TestPublicReadPolicyIsValidJSON(t *testing.T) {
	var doc struct {
		Statement []struct {
			Action   []string
			Resource []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(publicReadPolicy("labels", "etiquetas")), &doc))
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, []string{"s3:GetObject"}, doc.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::labels/etiquetas/*"}, doc.Statement[0].Resource)
}

func TestProgressReaderClampsToTotal(t *testing.T) {
	var seen []int64
	p := newProgressReader(10, func(done, total int64) {
		assert.Equal(t, int64(10), total)
		seen = append(seen, done)
	})
	for _, n := range []int{4, 4, 4} {
		got, err := p.Read(make([]byte, n))
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
	assert.Equal(t, []int64{4, 8, 10}, seen)
}

func TestProgressReaderConcurrentParts(t *testing.T) {
	const (
		parts  = 4
		chunks = 64
		chunk  = 32 << 10
	)
	total := int64(parts * chunks * chunk)
	var (
		mu   sync.Mutex
		seen []int64
	)
	p := newProgressReader(total, func(done, _ int64) {
		mu.Lock()
		seen = append(seen, done)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < parts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := make([]byte, chunk)
			for j := 0; j < chunks; j++ {
				_, _ = p.Read(buf)
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, parts*chunks)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
	assert.Equal(t, total, seen[len(seen)-1])
}
