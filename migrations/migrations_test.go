package migrations

import "testing"

func TestDiscover_SortedWithChecksums(t *testing.T) {
	migrations, err := Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(migrations) < 2 {
		t.Fatalf("Expected at least 2 embedded migrations, got %d", len(migrations))
	}

	for i, m := range migrations {
		if m.Version == "" || m.SQL == "" {
			t.Errorf("Migration %s has empty version or body", m.Filename)
		}
		if len(m.Checksum) != 64 {
			t.Errorf("Migration %s checksum should be hex sha256, got %q", m.Filename, m.Checksum)
		}
		if i > 0 && migrations[i-1].Filename >= m.Filename {
			t.Errorf("Migrations not sorted: %s before %s", migrations[i-1].Filename, m.Filename)
		}
	}

	if migrations[0].Version != "001" {
		t.Errorf("Expected first version 001, got %s", migrations[0].Version)
	}
}

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		filename  string
		want      string
		expectErr bool
	}{
		{"001_orders.sql", "001", false},
		{"010_add_index_on_x.sql", "010", false},
		{"orders.sql", "", true},
	}

	for _, tt := range tests {
		got, err := extractVersion(tt.filename)
		if tt.expectErr {
			if err == nil {
				t.Errorf("extractVersion(%q): expected error", tt.filename)
			}
			continue
		}
		if err != nil {
			t.Errorf("extractVersion(%q): unexpected error %v", tt.filename, err)
		}
		if got != tt.want {
			t.Errorf("extractVersion(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
