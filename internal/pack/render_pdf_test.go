package pack

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasepack/pkg/domain"
)

func TestPDFRendererWithoutChrome(t *testing.T) {
	html, err := NewHTMLRenderer()
	require.NoError(t, err)
	r := NewPDFRenderer(html)
	r.lookupPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err = r.Render(context.Background(), "layout.html", nil)
	assert.ErrorIs(t, err, ErrChromeUnavailable)
	assert.Equal(t, "application/pdf", r.MimeType())
	assert.Equal(t, "pdf", r.Extension())
}

func TestPDFRendererPrintsNotice(t *testing.T) {
	html, err := NewHTMLRenderer()
	require.NoError(t, err)
	r := NewPDFRenderer(html, WithRenderTimeout(time.Minute))
	if _, err := r.chromePath(); err != nil {
		t.Skip("headless chrome not installed")
	}

	registry, err := NewRegistry(r)
	require.NoError(t, err)
	p, err := registry.Generate(context.Background(), section21Case(), domain.ProductNoticeOnly, domain.JurisdictionEngland)
	require.NoError(t, err)
	require.Len(t, p.Documents, 1)

	doc := p.Documents[0]
	assert.Equal(t, "01-section-21-notice.pdf", doc.FileName)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
}
