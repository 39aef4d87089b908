package analysis

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vatdesk/api/internal/storage"
	"github.com/vatdesk/api/internal/testutil"
	"github.com/vatdesk/api/internal/vat"
)

// failingStore rejects every write.
type failingStore struct{ storage.Storage }

func (failingStore) Put(context.Context, string, io.Reader, string) (string, error) {
	return "", errors.New("bucket unavailable")
}

func TestArchive_StoresAndLoadsResult(t *testing.T) {
	svc := newTestService(t, vat.MappingRules{})
	svc.SetArchive(storage.NewLocal(t.TempDir()))
	ctx := context.Background()

	res, err := svc.Analyze(ctx, Input{Name: "sample.csv", Data: testutil.SampleExport(t)}, vat.MappingRules{})
	require.NoError(t, err)
	assert.True(t, res.Archived)

	got, err := svc.Get(ctx, res.RunID)
	require.NoError(t, err)

	assert.Equal(t, res.RunID, got.RunID)
	assert.Equal(t, "sample.csv", got.Source)
	assert.True(t, got.Archived)
	assert.True(t, got.AnalyzedAt.Equal(res.AnalyzedAt))
	assert.Len(t, got.Report.Breakdown, len(res.Report.Breakdown))
	assert.True(t, got.Report.SanityCheckGlobal.GrandTotal.Equal(res.Report.SanityCheckGlobal.GrandTotal))
	assert.Equal(t, res.Report.RulesApplied, got.Report.RulesApplied)
}

func TestArchive_GetUnknownRun(t *testing.T) {
	svc := newTestService(t, vat.MappingRules{})
	svc.SetArchive(storage.NewLocal(t.TempDir()))

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestArchive_Disabled(t *testing.T) {
	svc := newTestService(t, vat.MappingRules{})

	res, err := svc.Analyze(context.Background(), Input{Name: "sample.csv", Data: testutil.SampleExport(t)}, vat.MappingRules{})
	require.NoError(t, err)
	assert.False(t, res.Archived)

	_, err = svc.Get(context.Background(), res.RunID)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
	assert.ErrorIs(t, svc.Delete(context.Background(), res.RunID), ErrArchiveDisabled)
}

func TestArchive_Delete(t *testing.T) {
	svc := newTestService(t, vat.MappingRules{})
	svc.SetArchive(storage.NewLocal(t.TempDir()))
	ctx := context.Background()

	res, err := svc.Analyze(ctx, Input{Name: "sample.csv", Data: testutil.SampleExport(t)}, vat.MappingRules{})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, res.RunID))

	_, err = svc.Get(ctx, res.RunID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, res.RunID), ErrNotFound)
}

func TestArchive_UploadFailureKeepsResult(t *testing.T) {
	svc := newTestService(t, vat.MappingRules{})
	svc.SetArchive(failingStore{})

	res, err := svc.Analyze(context.Background(), Input{Name: "sample.csv", Data: testutil.SampleExport(t)}, vat.MappingRules{})
	require.NoError(t, err)
	assert.False(t, res.Archived)
	assert.Equal(t, 6, res.Report.RulesApplied.TotalProcessed)
}

func TestArchiveKey(t *testing.T) {
	id := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	key := archiveKey(id)
	assert.True(t, strings.HasPrefix(key, "analyses/"))
	assert.Equal(t, "analyses/7c9e6679-7425-40de-944b-e07fc1f90ae7.json", key)
}
