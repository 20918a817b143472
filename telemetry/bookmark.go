package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/flock/config"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFlockAligned   BookmarkType = "flock_aligned"
	BookmarkFlockScattered BookmarkType = "flock_scattered"
	BookmarkSpreadSpike    BookmarkType = "spread_spike"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int32        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark.
func (b Bookmark) LogBookmark(logger *slog.Logger) {
	logger.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable flock transitions between windows.
type BookmarkDetector struct {
	thresholds config.BookmarksConfig

	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// aligned is the hysteresis state between the aligned and scattered thresholds
	aligned bool
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, thresholds config.BookmarksConfig) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3 // minimum for a meaningful rolling mean
	}
	return &BookmarkDetector{
		thresholds:  thresholds,
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkAlignment(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkSpreadSpike(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkAlignment fires once when polarization rises through the aligned
// threshold and once when it later falls below the scattered threshold.
func (bd *BookmarkDetector) checkAlignment(stats WindowStats) *Bookmark {
	if stats.BoidCount < 2 {
		return nil
	}

	if !bd.aligned && stats.Polarization >= bd.thresholds.AlignedThreshold {
		bd.aligned = true
		return &Bookmark{
			Type:        BookmarkFlockAligned,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Polarization rose to %.2f", stats.Polarization),
		}
	}

	if bd.aligned && stats.Polarization < bd.thresholds.ScatteredThreshold {
		bd.aligned = false
		return &Bookmark{
			Type:        BookmarkFlockScattered,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Polarization fell to %.2f", stats.Polarization),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkSpreadSpike(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.Spread
	}
	avg := total / float64(len(history))
	if avg == 0 {
		return nil
	}

	if stats.Spread > avg*bd.thresholds.SpreadMultiplier {
		return &Bookmark{
			Type:        BookmarkSpreadSpike,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Spread %.2f is %.1fx average (%.2f)", stats.Spread, stats.Spread/avg, avg),
		}
	}

	return nil
}
