package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carregistry/ml"
)

type fakeStore struct {
	observations []ml.Observation
	calls        int
	err          error
}

func (f *fakeStore) ReplaceObservations(ctx context.Context, observations []ml.Observation) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.observations = observations
	return nil
}

const seedCSV = `mileage,label
0,true
100,true
-5,true
100000,false
150000,false
`

func TestParseObservations(t *testing.T) {
	records, err := ParseObservations(strings.NewReader(seedCSV))
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 2, records[0].Row)
	assert.True(t, records[0].Label)
	assert.Equal(t, -5.0, records[2].Mileage)
	assert.False(t, records[4].Label)
	assert.Equal(t, 150000.0, records[4].Mileage)

	_, err = ParseObservations(strings.NewReader("mileage,label\nabc,true\n"))
	assert.Error(t, err)
}

func TestIngesterImport(t *testing.T) {
	store := &fakeStore{}
	ingester := NewIngester(nil, store, nil)

	report, err := ingester.Import(context.Background(), strings.NewReader(seedCSV))
	require.NoError(t, err)
	assert.Equal(t, 5, report.Read)
	assert.Equal(t, 4, report.Accepted)
	assert.Equal(t, 1, report.Rejected)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, 4, report.Issues[0].Row)

	assert.Equal(t, []ml.Observation{
		{Mileage: 0, Label: true},
		{Mileage: 100, Label: true},
		{Mileage: 100000, Label: false},
		{Mileage: 150000, Label: false},
	}, store.observations)
	assert.EqualValues(t, 1, ingester.GetStats().Imports)
}

func TestIngesterRejectsEmptyImport(t *testing.T) {
	store := &fakeStore{}
	ingester := NewIngester(nil, store, nil)

	_, err := ingester.Import(context.Background(), strings.NewReader("mileage,label\n-1,true\n"))
	assert.ErrorIs(t, err, ErrEmptyImport)
	assert.Zero(t, store.calls)
	assert.EqualValues(t, 1, ingester.GetStats().FailedImports)
}

func TestIngesterStoreFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	_, err := NewIngester(nil, store, nil).Import(context.Background(), strings.NewReader(seedCSV))
	assert.ErrorContains(t, err, "disk full")
}

func TestIngesterImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "car_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(seedCSV), 0o600))

	store := &fakeStore{}
	report, err := NewIngester(nil, store, nil).ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, report.Source)
	assert.Len(t, store.observations, 4)

	_, err = NewIngester(nil, store, nil).ImportFile(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
