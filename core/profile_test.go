package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseProfileDefaults(t *testing.T) {
	p, err := ParseProfile([]byte(`{"name": "custom", "product_id": 305419896, "flash_size": 32768}`))
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	if p.ProductID != 0x12345678 || p.FlashSize != 32768 {
		t.Errorf("Parsed %+v", p)
	}
	if p.PageSize != DefaultPageSize || p.BlockSize != DefaultBlockSize || p.ConfigWords != DefaultConfigWords {
		t.Errorf("Defaults not applied: %+v", p)
	}
	if p.LDROMSize != 4096 {
		t.Errorf("Expected 4 KB LDROM, got %d", p.LDROMSize)
	}
	if len(p.Config) != 2 || p.Config[0] != 0xFFFFFF7F {
		t.Errorf("Expected factory CONFIG, got %#x", p.Config)
	}
}

func TestParseProfileInvalid(t *testing.T) {
	tests := []string{
		`{"page_size": 300}`,
		`{"block_size": 6}`,
		`{"flash_size": 1000}`,
		`{"config_words": 20}`,
		`{"config_words": 12}`,
		`{"config_words": 1, "config": [1, 2]}`,
		`{"name": `,
	}
	for _, data := range tests {
		if _, err := ParseProfile([]byte(data)); err == nil {
			t.Errorf("ParseProfile(%s) succeeded, want error", data)
		}
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.json")
	if err := os.WriteFile(path, []byte(`{"name": "file", "ldrom_size": 8192}`), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.Name != "file" || p.DeviceInfo().LDROMSize != 8192 {
		t.Errorf("Loaded %+v", p)
	}

	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestBuiltinProfiles(t *testing.T) {
	names := BuiltinProfileNames()
	if len(names) != 2 {
		t.Fatalf("Expected 2 built-in profiles, got %v", names)
	}
	for _, name := range names {
		p, ok := BuiltinProfile(name)
		if !ok {
			t.Fatalf("BuiltinProfile(%q) missing", name)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
		p.Config[0] = 0
		again, _ := BuiltinProfile(name)
		if again.Config[0] == 0 {
			t.Errorf("%s: BuiltinProfile returned shared CONFIG storage", name)
		}
	}
}

func TestLoadProfileYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "part.yaml")
	data := "name: m032\nproduct_id: 0x01132000\nflash_size: 0x8000\nconfig: [0xFFFFFF7E, 0x7000]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if p.ProductID != 0x01132000 || p.FlashSize != 0x8000 {
		t.Errorf("Loaded %+v", p)
	}
	if len(p.Config) != 2 || p.Config[1] != 0x7000 {
		t.Errorf("Expected CONFIG1 0x7000, got %#x", p.Config)
	}

	m := p.NewMemoryFlash()
	geo, err := DiscoverGeometry(m, p.DeviceInfo(), 0)
	if err != nil {
		t.Fatalf("DiscoverGeometry failed: %v", err)
	}
	if geo.DataFlash.Base != 0x7000 || geo.DataFlash.Size != 0x1000 {
		t.Errorf("Expected Data Flash 0x7000+0x1000, got 0x%X+0x%X", geo.DataFlash.Base, geo.DataFlash.Size)
	}
}

func TestFindProfileByProductID(t *testing.T) {
	p, ok := FindProfileByProductID(0x01131400)
	if !ok {
		t.Fatal("Expected a profile for 0x01131400")
	}
	if p.Name != "m031-128k-df" {
		t.Errorf("Expected m031-128k-df, got %s", p.Name)
	}
	if _, ok := FindProfileByProductID(0xDEADBEEF); ok {
		t.Error("Unexpected profile for an unknown product ID")
	}
}
