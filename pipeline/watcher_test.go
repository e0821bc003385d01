package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSeedWatcherTriggersOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "car_data.csv")
	require.NoError(t, os.WriteFile(path, []byte(seedCSV), 0o600))

	var calls atomic.Int32
	changed := make(chan struct{}, 4)
	w := NewSeedWatcher(path, 20*time.Millisecond, func(ctx context.Context) error {
		calls.Add(1)
		select {
		case changed <- struct{}{}:
		default:
		}
		return nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// the watcher may not be registered yet, so keep touching the file until it fires
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
wait:
	for {
		select {
		case <-changed:
			break wait
		case <-ticker.C:
			require.NoError(t, os.WriteFile(filepath.Join(dir, "other.csv"), []byte("x"), 0o600))
			require.NoError(t, os.WriteFile(path, []byte(seedCSV+"200000,false\n"), 0o600))
		case <-timeout:
			t.Fatal("seed watcher did not fire")
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	require.GreaterOrEqual(t, calls.Load(), int32(1))
}
