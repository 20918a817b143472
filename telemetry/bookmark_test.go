package telemetry

import (
	"testing"

	"github.com/pthm-cable/flock/config"
)

func testThresholds() config.BookmarksConfig {
	return config.BookmarksConfig{
		AlignedThreshold:   0.8,
		ScatteredThreshold: 0.4,
		SpreadMultiplier:   1.5,
	}
}

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_AlignmentHysteresis(t *testing.T) {
	bd := NewBookmarkDetector(10, testThresholds())

	steps := []struct {
		polarization float64
		want         BookmarkType
	}{
		{0.3, ""},
		{0.85, BookmarkFlockAligned},
		{0.9, ""}, // already aligned
		{0.6, ""}, // between thresholds
		{0.82, ""},
		{0.35, BookmarkFlockScattered},
		{0.2, ""}, // already scattered
		{0.81, BookmarkFlockAligned},
	}

	for i, s := range steps {
		stats := WindowStats{
			WindowEndTick: int32(i * 250),
			BoidCount:     100,
			Polarization:  s.polarization,
			Spread:        10,
		}
		bookmarks := bd.Check(stats)

		if s.want == "" {
			if hasBookmark(bookmarks, BookmarkFlockAligned) || hasBookmark(bookmarks, BookmarkFlockScattered) {
				t.Errorf("step %d (pol %.2f): unexpected %v", i, s.polarization, bookmarks)
			}
			continue
		}
		if !hasBookmark(bookmarks, s.want) {
			t.Errorf("step %d (pol %.2f): expected %s, got %v", i, s.polarization, s.want, bookmarks)
		}
	}
}

func TestBookmarkDetector_SpreadSpike(t *testing.T) {
	bd := NewBookmarkDetector(10, testThresholds())

	// Steady spread
	for i := 0; i < 5; i++ {
		bookmarks := bd.Check(WindowStats{WindowEndTick: int32(i * 250), BoidCount: 50, Spread: 8})
		if hasBookmark(bookmarks, BookmarkSpreadSpike) {
			t.Fatalf("window %d: unexpected spread spike", i)
		}
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 1250, BoidCount: 50, Spread: 13})
	if !hasBookmark(bookmarks, BookmarkSpreadSpike) {
		t.Error("expected spread_spike bookmark")
	}
}

func TestBookmarkDetector_NeedsHistory(t *testing.T) {
	bd := NewBookmarkDetector(10, testThresholds())

	bd.Check(WindowStats{BoidCount: 50, Spread: 1})
	bd.Check(WindowStats{BoidCount: 50, Spread: 1})
	bookmarks := bd.Check(WindowStats{BoidCount: 50, Spread: 100})
	if hasBookmark(bookmarks, BookmarkSpreadSpike) {
		t.Error("spread spike needs three windows of history")
	}
}
