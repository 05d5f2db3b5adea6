package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasepack/internal/cases/models"
	"leasepack/pkg/domain"
	"leasepack/pkg/platform/sentinel"
)

func TestInMemoryVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	c, err := models.NewCase(domain.NewCaseID(), domain.JurisdictionEngland, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, c))
	assert.ErrorIs(t, s.Create(ctx, c), sentinel.ErrConflict)

	first, err := s.FindForUpdate(ctx, c.ID)
	require.NoError(t, err)
	second, err := s.FindForUpdate(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, first))
	assert.Equal(t, 2, first.Version)
	assert.ErrorIs(t, s.Save(ctx, second), sentinel.ErrConflict)

	_, err = s.FindByID(ctx, domain.NewCaseID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	c, err := models.NewCase(domain.NewCaseID(), domain.JurisdictionWales, time.Now())
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, c))

	got, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	got.AppendEvidence([]models.EvidenceFile{{ID: domain.NewEvidenceID(), QuestionID: "epc_upload"}}, time.Now())

	again, err := s.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Evidence)
}
