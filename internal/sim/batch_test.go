package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/fedtrust/internal/trust"
)

func TestRunBatch_OrderAndDeterminism(t *testing.T) {
	base := DefaultSettings()
	base.Seed = 100
	base.AdversarialFraction = 0.2
	batch := Seeds(base, 4)

	results, err := RunBatch(context.Background(), batch, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, res := range results {
		require.Equal(t, uint64(100+i), res.Settings.Seed)

		single, err := Run(context.Background(), batch[i])
		require.NoError(t, err)
		if diff := cmp.Diff(single.FinalTrust, res.FinalTrust); diff != "" {
			t.Errorf("batch entry %d differs from a standalone run:\n%s", i, diff)
		}
	}
}

func TestRunBatch_InvalidEntry(t *testing.T) {
	good := DefaultSettings()
	bad := DefaultSettings()
	bad.Topology = "ring"

	_, err := RunBatch(context.Background(), []Settings{good, bad}, 0)
	if !errors.Is(err, trust.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSeeds(t *testing.T) {
	base := DefaultSettings()
	base.Seed = 7
	out := Seeds(base, 3)
	for i, s := range out {
		if s.Seed != uint64(7+i) {
			t.Errorf("seed %d = %d, want %d", i, s.Seed, 7+i)
		}
	}
}
