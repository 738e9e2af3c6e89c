package acquire

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianbeese/mietcheck/internal/domain"
)

type fakeFetcher struct {
	text  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (*domain.Page, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Page{URL: url, Text: f.text, Strategy: domain.StrategyHTTP}, nil
}

type fakeRenderer struct {
	text  string
	err   error
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, url string) (*domain.Page, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &domain.Page{URL: url, Text: r.text, Strategy: domain.StrategyRender}, nil
}

func TestChain_AcceptsLongLightweightText(t *testing.T) {
	f := &fakeFetcher{text: strings.Repeat("a", 201)}
	r := &fakeRenderer{text: strings.Repeat("b", 500)}
	c := NewChain(f, r, 200, 100, nil)

	page, err := c.Acquire(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyHTTP, page.Strategy)
	assert.Equal(t, 0, r.calls)
}

func TestChain_ShortLightweightTextEscalates(t *testing.T) {
	f := &fakeFetcher{text: strings.Repeat("a", 199)}
	r := &fakeRenderer{text: strings.Repeat("b", 101)}
	c := NewChain(f, r, 200, 100, nil)

	page, err := c.Acquire(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyRender, page.Strategy)
	assert.Equal(t, 1, r.calls)
}

func TestChain_ThresholdIsExclusive(t *testing.T) {
	f := &fakeFetcher{text: strings.Repeat("a", 200)}
	r := &fakeRenderer{text: strings.Repeat("b", 100)}
	c := NewChain(f, r, 200, 100, nil)

	_, err := c.Acquire(context.Background(), "https://example.org")
	assert.ErrorIs(t, err, domain.ErrNoText)
	assert.Equal(t, 1, r.calls)
}

func TestChain_FetchErrorEscalates(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection reset")}
	r := &fakeRenderer{text: strings.Repeat("b", 150)}
	c := NewChain(f, r, 200, 100, nil)

	text, ok := c.AcquireText(context.Background(), "https://example.org")
	assert.True(t, ok)
	assert.Len(t, text, 150)
}

func TestChain_BothFail(t *testing.T) {
	f := &fakeFetcher{err: errors.New("timeout")}
	r := &fakeRenderer{err: errors.New("chrome crashed")}
	c := NewChain(f, r, 200, 100, nil)

	_, err := c.Acquire(context.Background(), "https://example.org")
	assert.ErrorIs(t, err, domain.ErrNoText)

	_, ok := c.AcquireText(context.Background(), "https://example.org")
	assert.False(t, ok)
}

func TestChain_NoRenderer(t *testing.T) {
	f := &fakeFetcher{text: "short"}
	c := NewChain(f, nil, 200, 100, nil)

	_, err := c.Acquire(context.Background(), "https://example.org")
	assert.ErrorIs(t, err, domain.ErrNoText)
}

func TestChain_AcquireRenderedPrefersRenderer(t *testing.T) {
	f := &fakeFetcher{text: strings.Repeat("a", 300)}
	r := &fakeRenderer{text: strings.Repeat("b", 300)}
	c := NewChain(f, r, 200, 100, nil)

	page, err := c.AcquireRendered(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyRender, page.Strategy)
	assert.Equal(t, 0, f.calls)
}

func TestChain_AcquireRenderedFallsBackToFetch(t *testing.T) {
	f := &fakeFetcher{text: strings.Repeat("a", 300)}
	r := &fakeRenderer{err: errors.New("no chrome")}
	c := NewChain(f, r, 200, 100, nil)

	page, err := c.AcquireRendered(context.Background(), "https://example.org")
	require.NoError(t, err)
	assert.Equal(t, domain.StrategyHTTP, page.Strategy)
}

func TestChain_SingleStrategyHelpers(t *testing.T) {
	f := &fakeFetcher{text: strings.Repeat("a", 250)}
	r := &fakeRenderer{text: strings.Repeat("b", 50)}
	c := NewChain(f, r, 200, 100, nil)

	_, ok := c.FetchText(context.Background(), "https://example.org")
	assert.True(t, ok)
	_, ok = c.RenderText(context.Background(), "https://example.org")
	assert.False(t, ok)
}
