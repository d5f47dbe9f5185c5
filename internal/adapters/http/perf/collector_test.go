package perf

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCollector_Snapshot(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		entries []Entry
		since   time.Time
		topN    int
		check   func(t *testing.T, s Snapshot)
	}{
		{
			name: "groups by kind and route",
			entries: []Entry{
				{Kind: KindRequest, Path: "GET /{$}", StatusCode: 200, DurationMs: 10, Timestamp: now},
				{Kind: KindRequest, Path: "GET /{$}", StatusCode: 200, DurationMs: 30, Timestamp: now},
				{Kind: KindStore, Path: "sqlite.Exec", DurationMs: 5, Timestamp: now},
				{Kind: KindStore, Path: "sqlite.Exec", DurationMs: 7, Failed: true, Timestamp: now},
			},
			since: now.Add(-time.Minute),
			topN:  10,
			check: func(t *testing.T, s Snapshot) {
				if s.TotalRecorded != 4 || s.Requests != 2 {
					t.Errorf("TotalRecorded = %d, Requests = %d", s.TotalRecorded, s.Requests)
				}
				if len(s.SlowestPaths) != 1 || s.SlowestPaths[0].AvgMs != 20 || s.SlowestPaths[0].MaxMs != 30 {
					t.Errorf("SlowestPaths = %+v", s.SlowestPaths)
				}
				if len(s.SlowestStore) != 1 || s.SlowestStore[0].Failures != 1 || s.SlowestStore[0].Count != 2 {
					t.Errorf("SlowestStore = %+v", s.SlowestStore)
				}
				if len(s.SlowestUploads) != 0 {
					t.Errorf("SlowestUploads = %+v", s.SlowestUploads)
				}
			},
		},
		{
			name: "counts failed requests",
			entries: []Entry{
				{Kind: KindRequest, Path: "POST /register", StatusCode: 503, DurationMs: 2, Failed: true, Timestamp: now},
				{Kind: KindRequest, Path: "POST /register", StatusCode: 201, DurationMs: 2, Timestamp: now},
				{Kind: KindStore, Path: "sqlite.Exec", DurationMs: 1, Failed: true, Timestamp: now},
			},
			since: now.Add(-time.Minute),
			topN:  10,
			check: func(t *testing.T, s Snapshot) {
				if s.RequestErrors != 1 {
					t.Errorf("RequestErrors = %d, want 1", s.RequestErrors)
				}
			},
		},
		{
			name: "slowest first, capped at topN",
			entries: []Entry{
				{Kind: KindRequest, Path: "GET /a", DurationMs: 1, Timestamp: now},
				{Kind: KindRequest, Path: "GET /b", DurationMs: 2, Timestamp: now},
				{Kind: KindRequest, Path: "GET /c", DurationMs: 3, Timestamp: now},
			},
			since: now.Add(-time.Minute),
			topN:  2,
			check: func(t *testing.T, s Snapshot) {
				if len(s.SlowestPaths) != 2 || s.SlowestPaths[0].Path != "GET /c" || s.SlowestPaths[1].Path != "GET /b" {
					t.Errorf("SlowestPaths = %+v", s.SlowestPaths)
				}
			},
		},
		{
			name: "drops entries before since",
			entries: []Entry{
				{Kind: KindRequest, Path: "GET /old", DurationMs: 100, Timestamp: now.Add(-2 * time.Hour)},
				{Kind: KindRequest, Path: "GET /new", DurationMs: 10, Timestamp: now},
			},
			since: now.Add(-time.Hour),
			topN:  10,
			check: func(t *testing.T, s Snapshot) {
				if len(s.SlowestPaths) != 1 || s.SlowestPaths[0].Path != "GET /new" {
					t.Errorf("SlowestPaths = %+v", s.SlowestPaths)
				}
				if s.TotalRecorded != 2 {
					t.Errorf("TotalRecorded counts every entry, got %d", s.TotalRecorded)
				}
			},
		},
		{
			name:  "empty buffer",
			since: now.Add(-time.Hour),
			topN:  10,
			check: func(t *testing.T, s Snapshot) {
				if s.Requests != 0 || s.RequestP99Ms != 0 || len(s.SlowestPaths) != 0 {
					t.Errorf("snapshot = %+v", s)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCollector(100)
			for _, e := range tt.entries {
				c.Record(e)
			}
			tt.check(t, c.Snapshot(tt.since, tt.topN))
		})
	}
}

func TestCollector_ObserveUpload(t *testing.T) {
	c := NewCollector(10)
	c.ObserveUpload("image", 1500*time.Millisecond, nil)
	c.ObserveUpload("image", 500*time.Millisecond, errors.New("rejected"))
	c.ObserveUpload("video", 3*time.Second, nil)

	snap := c.Snapshot(time.Now().Add(-time.Minute), 10)
	if len(snap.SlowestUploads) != 2 || snap.SlowestUploads[0].Path != "upload.video" {
		t.Fatalf("SlowestUploads = %+v", snap.SlowestUploads)
	}
	img := snap.SlowestUploads[1]
	if img.Path != "upload.image" || img.Count != 2 || img.Failures != 1 || img.AvgMs != 1000 {
		t.Errorf("image stat = %+v", img)
	}
	if snap.Requests != 0 {
		t.Errorf("uploads must not count as requests")
	}
}

func TestCollector_RingKeepsNewest(t *testing.T) {
	c := NewCollector(3)
	now := time.Now()
	for i := range 5 {
		c.Record(Entry{Kind: KindRequest, Path: "GET /x", DurationMs: float64(i), Timestamp: now})
	}
	if c.TotalRecorded() != 5 {
		t.Errorf("TotalRecorded = %d, want 5", c.TotalRecorded())
	}
	snap := c.Snapshot(now.Add(-time.Minute), 10)
	// 2, 3 and 4 survive.
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Count != 3 || snap.SlowestPaths[0].AvgMs != 3 {
		t.Errorf("SlowestPaths = %+v", snap.SlowestPaths)
	}
}

func TestPercentile(t *testing.T) {
	sorted := make([]float64, 100)
	for i := range sorted {
		sorted[i] = float64(i + 1)
	}
	tests := []struct {
		data []float64
		p    float64
		want float64
	}{
		{sorted, 50, 50.5},
		{sorted, 95, 95.05},
		{sorted, 99, 99.01},
		{sorted, 0, 1},
		{sorted, 100, 100},
		{[]float64{7}, 99, 7},
		{nil, 50, 0},
	}
	for _, tt := range tests {
		got := percentile(tt.data, tt.p)
		if diff := got - tt.want; diff > 0.001 || diff < -0.001 {
			t.Errorf("percentile(len=%d, %v) = %v, want %v", len(tt.data), tt.p, got, tt.want)
		}
	}
}

func TestCollector_ConcurrentRecord(t *testing.T) {
	c := NewCollector(1000)
	now := time.Now()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 20 {
				c.Record(Entry{Kind: KindStore, Path: "badger.Update", DurationMs: float64(n), Timestamp: now})
			}
		}(i)
	}
	wg.Wait()
	if c.TotalRecorded() != 1000 {
		t.Errorf("TotalRecorded = %d, want 1000", c.TotalRecorded())
	}
	if snap := c.Snapshot(now.Add(-time.Minute), 1); snap.SlowestStore[0].Count != 1000 {
		t.Errorf("Count = %d, want 1000", snap.SlowestStore[0].Count)
	}
}

func BenchmarkCollectorSnapshot(b *testing.B) {
	c := NewCollector(DefaultRingSize)
	now := time.Now()
	for i := range DefaultRingSize {
		c.Record(Entry{Kind: KindRequest, Path: "GET /api/events", StatusCode: 200, DurationMs: float64(i % 100), Timestamp: now})
	}
	since := now.Add(-time.Hour)
	b.ReportAllocs()
	for b.Loop() {
		c.Snapshot(since, 10)
	}
}
