package migrations

import (
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(FS, ".")
	if err != nil {
		t.Fatalf("iofs.New() unexpected error: %v", err)
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		t.Fatalf("First() unexpected error: %v", err)
	}
	if version != 1 {
		t.Fatalf("first version = %d, want 1", version)
	}

	for {
		up, _, err := src.ReadUp(version)
		if err != nil {
			t.Fatalf("ReadUp(%d) unexpected error: %v", version, err)
		}
		upSQL, _ := io.ReadAll(up)
		_ = up.Close()

		down, _, err := src.ReadDown(version)
		if err != nil {
			t.Fatalf("ReadDown(%d) unexpected error: %v", version, err)
		}
		_ = down.Close()

		if version == 1 {
			for _, table := range []string{"users", "positions", "history"} {
				if !strings.Contains(string(upSQL), "CREATE TABLE IF NOT EXISTS "+table) {
					t.Errorf("version 1 doesn't create table %s", table)
				}
			}
		}

		version, err = src.Next(version)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			t.Fatalf("Next() unexpected error: %v", err)
		}
	}
}
