package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/evsong/Evclaude-proxy/internal/model"
	"github.com/evsong/Evclaude-proxy/internal/store"
)

func TestWatchPresetsHotReload(t *testing.T) {
	file, err := store.NewJSONFile(filepath.Join(t.TempDir(), "presets.json"))
	if err != nil {
		t.Fatal(err)
	}
	ps, err := NewPresetStore(file, nil)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := WatchPresets(ctx, ps); err != nil {
		t.Fatal(err)
	}

	// External edit of the watched file.
	rules := []model.PresetRule{{Keywords: []string{"hot"}, MatchCount: 1, Response: "reloaded"}}
	if err := file.Save(rules); err != nil {
		t.Fatal(err)
	}

	// The watcher debounces events before reloading; poll until it lands.
	deadline := time.After(5 * time.Second)
	for {
		if got, ok := ps.Match("hot"); ok && got == "reloaded" {
			return
		}
		select {
		case <-deadline:
			t.Fatal("watcher never reloaded the edited file")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
