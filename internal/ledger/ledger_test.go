package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"devicemail/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T, b ledger.Backend) *ledger.Ledger {
	t.Helper()
	l, err := ledger.Open(context.Background(), b, nil)
	require.NoError(t, err)
	return l
}

func boolPtr(v bool) *bool { return &v }

func TestOpenResetsUnusableState(t *testing.T) {
	cases := map[string][]byte{
		"absent":  nil,
		"empty":   []byte("   \n"),
		"corrupt": []byte("{not json"),
	}
	for name, initial := range cases {
		t.Run(name, func(t *testing.T) {
			b := ledger.NewMemoryBackend(initial)
			l := open(t, b)
			require.Empty(t, l.List())
			require.Equal(t, 1, b.Saves(), "reset must be persisted")

			raw, err := b.Load(context.Background())
			require.NoError(t, err)
			var doc ledger.Document
			require.NoError(t, json.Unmarshal(raw, &doc))
			require.NotNil(t, doc.AdminDevices)
			require.NotNil(t, doc.UserDevices)
		})
	}
}

func TestOpenKeepsExistingDocument(t *testing.T) {
	doc := `{"admin_devices":[{"device_id":"a1","device_name":"Firefox","user_id":"u1","read_permission":true,"write_permission":true,"is_active":true}]}`
	b := ledger.NewMemoryBackend([]byte(doc))
	l := open(t, b)

	require.Equal(t, 0, b.Saves())
	e, ok := l.Get("a1")
	require.True(t, ok)
	require.Equal(t, "Firefox", e.DeviceName)
	require.True(t, l.CanWrite("a1"))
}

func TestOpenPropagatesBackendFailure(t *testing.T) {
	_, err := ledger.Open(context.Background(), failingLoad{}, nil)
	require.Error(t, err)
}

type failingLoad struct{}

func (failingLoad) Load(context.Context) ([]byte, error) { return nil, errors.New("disk gone") }
func (failingLoad) Save(context.Context, []byte) error   { return nil }

func TestAddPartitionsAndDefaults(t *testing.T) {
	ctx := context.Background()
	l := open(t, ledger.NewMemoryBackend(nil))

	ok, err := l.Add(ctx, "u-admin", "k-admin", "Chrome/Mac", true)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = l.Add(ctx, "u-user", "k-user", "Safari", false)
	require.NoError(t, err)
	require.True(t, ok)

	list := l.List()
	require.Len(t, list, 2)
	require.Equal(t, "k-admin", list[0].DeviceID, "admin entries come first")
	require.True(t, list[0].WritePermission)
	require.False(t, list[1].WritePermission)
	require.True(t, list[1].ReadPermission)
	require.True(t, list[1].IsActive)

	require.True(t, l.CanRead("k-user"))
	require.False(t, l.CanWrite("k-user"))
	require.False(t, l.CanRead("missing"))
	require.False(t, l.CanWrite("missing"))
}

func TestAddDuplicateCheckOnlyCoversAdminPartition(t *testing.T) {
	ctx := context.Background()
	b := ledger.NewMemoryBackend(nil)
	l := open(t, b)

	ok, err := l.Add(ctx, "u1", "dup", "x", true)
	require.NoError(t, err)
	require.True(t, ok)
	saves := b.Saves()

	ok, err = l.Add(ctx, "u1", "dup", "x", true)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, saves, b.Saves(), "rejected add must not write")

	// User partition entries are never checked.
	ok, err = l.Add(ctx, "u2", "dup-user", "y", false)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = l.Add(ctx, "u2", "dup-user", "y", false)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, l.List(), 3)
}

func TestUpdatePermissionAndRemove(t *testing.T) {
	ctx := context.Background()
	l := open(t, ledger.NewMemoryBackend(nil))
	_, err := l.Add(ctx, "u1", "k1", "Chrome", false)
	require.NoError(t, err)

	ok, err := l.UpdatePermission(ctx, "k1", nil, boolPtr(true))
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, l.CanWrite("k1"))
	require.True(t, l.CanRead("k1"))

	ok, err = l.UpdatePermission(ctx, "k1", boolPtr(false), nil)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, l.CanRead("k1"))
	// The ledger stores flags as given; it does not gate write through read.
	require.True(t, l.CanWrite("k1"))

	ok, err = l.UpdatePermission(ctx, "nope", boolPtr(true), nil)
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = l.Remove(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	_, found := l.Get("k1")
	require.False(t, found)

	ok, err = l.Remove(ctx, "k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFailedSaveLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	b := ledger.NewMemoryBackend(nil)
	l := open(t, b)
	_, err := l.Add(ctx, "u1", "k1", "Chrome", false)
	require.NoError(t, err)

	b.FailSaves(errors.New("read-only"))
	_, err = l.Add(ctx, "u1", "k2", "Edge", false)
	require.Error(t, err)
	_, err = l.Remove(ctx, "k1")
	require.Error(t, err)

	require.Len(t, l.List(), 1)
	_, ok := l.Get("k1")
	require.True(t, ok)
}

func TestConcurrentAddsAreNotLost(t *testing.T) {
	ctx := context.Background()
	b := ledger.NewMemoryBackend(nil)
	l := open(t, b)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := l.Add(ctx, "u", string(rune('A'+i)), "label", i%2 == 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.Len(t, l.List(), n)

	// The persisted document reflects every write as well.
	reopened := open(t, b)
	require.Len(t, reopened.List(), n)
}

func TestFileBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devices.json")

	l := open(t, ledger.NewFileBackend(path))
	_, err := os.Stat(path)
	require.NoError(t, err, "initial reset must create the file")

	_, err = l.Add(ctx, "u1", "k1", "Chrome", true)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"admin_devices"`)
	require.Contains(t, string(raw), `"device_id": "k1"`)

	reopened := open(t, ledger.NewFileBackend(path))
	e, ok := reopened.Get("k1")
	require.True(t, ok)
	require.Equal(t, "u1", e.UserID)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	require.Empty(t, matches, "temp files must not linger")
}

func TestFileBackendRecoversCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.json")
	require.NoError(t, os.WriteFile(path, []byte("]]]"), 0o600))

	l := open(t, ledger.NewFileBackend(path))
	require.Empty(t, l.List())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, json.Valid(raw))
}

// Runs against a real server only when LEDGER_TEST_REDIS_URL is set.
func TestRedisBackendRoundTrip(t *testing.T) {
	url := os.Getenv("LEDGER_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_REDIS_URL not set")
	}
	client, err := ledger.ConnectRedis(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	key := "devicemail:ledger:test:" + t.Name()
	t.Cleanup(func() { _ = client.Del(context.Background(), key).Err() })

	backend := ledger.NewRedisBackend(client, key)
	raw, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, raw)

	l, err := ledger.Open(ctx, backend, nil)
	require.NoError(t, err)
	_, err = l.Add(ctx, "u1", "d1", "Chrome", false)
	require.NoError(t, err)

	reopened, err := ledger.Open(ctx, backend, nil)
	require.NoError(t, err)
	require.Len(t, reopened.List(), 1)
}
