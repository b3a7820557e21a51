package marketcache

import (
	"testing"

	"ctfmm/internal/model"
)

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Parallel()
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	m := model.NewMarket("0xcond", 111, 222)
	if err := cache.Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := cache.Load("0xcond")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load returned nil after Save")
	}
	if loaded.ConditionID != m.ConditionID {
		t.Errorf("ConditionID = %q, want %q", loaded.ConditionID, m.ConditionID)
	}
	if loaded.TokenID(model.TokenA) != 111 || loaded.TokenID(model.TokenB) != 222 {
		t.Errorf("token ids = (%d, %d), want (111, 222)", loaded.TokenID(model.TokenA), loaded.TokenID(model.TokenB))
	}
}

func TestLoadMissingEntryReturnsNilNil(t *testing.T) {
	t.Parallel()
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	loaded, err := cache.Load("0xnonexistent")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded != nil {
		t.Errorf("Load for missing entry = %v, want nil", loaded)
	}
}

func TestSaveOverwritesExistingEntry(t *testing.T) {
	t.Parallel()
	cache, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := cache.Save(model.NewMarket("0xcond", 1, 2)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := cache.Save(model.NewMarket("0xcond", 3, 4)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := cache.Load("0xcond")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.TokenID(model.TokenA) != 3 || loaded.TokenID(model.TokenB) != 4 {
		t.Errorf("expected overwritten values (3, 4), got (%d, %d)", loaded.TokenID(model.TokenA), loaded.TokenID(model.TokenB))
	}
}
