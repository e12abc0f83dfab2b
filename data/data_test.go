package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/intervention"
)

func TestCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewCache[string, int](time.Minute)
	c.now = func() time.Time { return now }

	v := 5
	c.Set("a", &v)
	require.NotNil(t, c.Get("a"))
	assert.Equal(t, 1, c.Len())

	// Reading slides the expiry forward.
	now = now.Add(50 * time.Second)
	require.NotNil(t, c.Get("a"))
	now = now.Add(50 * time.Second)
	require.NotNil(t, c.Get("a"))

	now = now.Add(2 * time.Minute)
	assert.Nil(t, c.Get("a"))
	assert.Equal(t, 0, c.Len())
}

func TestCacheDelete(t *testing.T) {
	c := NewCache[string, string](time.Minute)
	v := "x"
	c.Set("k", &v)
	c.Delete("k")
	assert.Nil(t, c.Get("k"))
}

func TestJsonUpdateCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "counts.json")
	for i := 0; i < 3; i++ {
		err := JsonUpdateExclusiveLock(path, func(m *map[string]int) error {
			if *m == nil {
				*m = map[string]int{}
			}
			(*m)["runs"]++
			return nil
		})
		require.NoError(t, err)
	}

	got, err := JsonReadSharedLock[map[string]int](path)
	require.NoError(t, err)
	assert.Equal(t, 3, (*got)["runs"])
}

func TestJsonUpdateTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.json")
	require.NoError(t, os.WriteFile(path, []byte(`["a","b","c","d"]`), 0o644))

	err := JsonUpdateExclusiveLock(path, func(l *[]string) error {
		*l = (*l)[:1]
		return nil
	})
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["a"]`, string(b))
}

func TestDataPath(t *testing.T) {
	t.Setenv("DATA_DIR", "/srv/co2")
	assert.Equal(t, "/srv/co2/aviation/airports.json", DataPath("aviation/airports.json"))
	assert.Equal(t, "/abs.json", DataPath("/abs.json"))
}

func TestTimestampJSON(t *testing.T) {
	ts := Timestamp(time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC))
	b, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-04T05:06:07Z"`, string(b))

	var back Timestamp
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, ts.Time().Equal(back.Time()))

	assert.Error(t, json.Unmarshal([]byte(`12`), &back))
}

func testHistory(t *testing.T, h *History) {
	t.Helper()
	for i := 0; i < MaxHistory+5; i++ {
		_, err := h.Add(SimulationRecord{
			Prompt:       fmt.Sprintf("prompt %d", i),
			Intervention: intervention.Intervention{Sector: intervention.SectorTransport},
		})
		require.NoError(t, err)
	}
	assert.Equal(t, MaxHistory, h.Count())

	recent, err := h.List(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, fmt.Sprintf("prompt %d", MaxHistory+4), recent[0].Prompt)
	assert.NotEmpty(t, recent[0].ID)
	assert.False(t, recent[0].CreatedAt.Time().IsZero())

	got, err := h.Get(recent[1].ID)
	require.NoError(t, err)
	assert.Equal(t, recent[1].Prompt, got.Prompt)

	_, err = h.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := h.List(0)
	require.NoError(t, err)
	assert.Len(t, all, MaxHistory)
	assert.Equal(t, "prompt 5", all[len(all)-1].Prompt)
}

func TestHistoryFile(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "history.json"))
	empty, err := h.List(10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	testHistory(t, h)
}

func TestHistoryMemory(t *testing.T) {
	testHistory(t, NewHistory(""))
}
