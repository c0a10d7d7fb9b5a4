package migrations

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestDiscover_Embedded(t *testing.T) {
	ms, err := Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(ms) == 0 || ms[0].Version != "001" {
		t.Fatalf("expected 001 first, got %+v", ms)
	}
	if len(ms[0].Checksum) != 64 {
		t.Errorf("expected sha256 hex checksum, got %q", ms[0].Checksum)
	}
	if !strings.Contains(ms[0].SQL, "crate_tracking") {
		t.Errorf("initial migration should create the crate ledger")
	}
}

func TestDiscover_SortsAndRejectsDuplicates(t *testing.T) {
	ms, err := discover(fstest.MapFS{
		"002_b.sql":  {Data: []byte("SELECT 2;")},
		"001_a.sql":  {Data: []byte("SELECT 1;")},
		"README.txt": {Data: []byte("ignored")},
	})
	if err != nil {
		t.Fatalf("discover failed: %v", err)
	}
	if len(ms) != 2 || ms[0].Filename != "001_a.sql" || ms[1].Filename != "002_b.sql" {
		t.Fatalf("unexpected order %+v", ms)
	}

	_, err = discover(fstest.MapFS{
		"001_a.sql": {Data: []byte("SELECT 1;")},
		"001_b.sql": {Data: []byte("SELECT 1;")},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate version error, got %v", err)
	}

	_, err = discover(fstest.MapFS{"init.sql": {Data: []byte("SELECT 1;")}})
	if err == nil {
		t.Errorf("expected filename format error")
	}
}
