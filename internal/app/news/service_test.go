package news_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivaya007/CROP-AI/internal/app/news"
	"github.com/Shivaya007/CROP-AI/internal/domain"
)

type fakeProvider struct {
	perTopic int
	err      error
	calls    int
}

func (f *fakeProvider) Search(ctx context.Context, query string) ([]*domain.Article, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.Article, 0, f.perTopic)
	for i := 0; i < f.perTopic; i++ {
		out = append(out, &domain.Article{
			Title: fmt.Sprintf("%s #%d", query, i+1),
			URL:   fmt.Sprintf("https://example.com/%d/%d", f.calls, i),
		})
	}
	return out, nil
}

func TestFetchPaginates(t *testing.T) {
	svc := news.NewService(&fakeProvider{perTopic: 4})

	first, err := svc.Fetch(context.Background(), 0, 5)
	require.NoError(t, err)
	assert.Len(t, first, 5)

	second, err := svc.Fetch(context.Background(), 5, 5)
	require.NoError(t, err)
	assert.Len(t, second, 5)
	assert.NotEqual(t, first[0].URL, second[0].URL)
}

func TestFetchOffsetPastEnd(t *testing.T) {
	svc := news.NewService(&fakeProvider{perTopic: 1})

	out, err := svc.Fetch(context.Background(), 1000, 10)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFetchAllTopicsFailing(t *testing.T) {
	svc := news.NewService(&fakeProvider{err: errors.New("feed down")})

	_, err := svc.Fetch(context.Background(), 0, 10)
	assert.Error(t, err)
}

func TestFetchDefaults(t *testing.T) {
	svc := news.NewService(&fakeProvider{perTopic: 20})

	out, err := svc.Fetch(context.Background(), -3, 0)
	require.NoError(t, err)
	assert.Len(t, out, 10, "invalid offset and count fall back to the first page")
}
