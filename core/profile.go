//go:build !tinygo

package core

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var rawProfiles []byte

var builtinProfiles []Profile

// Profile describes a device part: identification and flash layout. It is
// loaded from JSON or YAML by the simulator and the host tool.
type Profile struct {
	Name        string `json:"name" yaml:"name"`
	ProductID   uint32 `json:"product_id" yaml:"product_id"`
	FlashSize   uint32 `json:"flash_size" yaml:"flash_size"` // APROM + Data Flash bytes
	LDROMSize   uint32 `json:"ldrom_size" yaml:"ldrom_size"`
	PageSize    uint32 `json:"page_size" yaml:"page_size"`
	BlockSize   uint32 `json:"block_size" yaml:"block_size"`
	ConfigWords int    `json:"config_words" yaml:"config_words"`

	// Factory CONFIG contents
	Config []uint32 `json:"config,omitempty" yaml:"config,omitempty"`
}

// ParseProfile parses a JSON profile and applies defaults.
func ParseProfile(jsonData []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(jsonData, &p); err != nil {
		return nil, err
	}
	applyDefaults(&p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseProfileYAML parses a YAML profile and applies defaults.
func ParseProfileYAML(yamlData []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(yamlData, &p); err != nil {
		return nil, err
	}
	applyDefaults(&p)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile reads a profile from path. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseProfileYAML(data)
	default:
		return ParseProfile(data)
	}
}

// applyDefaults fills in missing values with the family defaults
func applyDefaults(p *Profile) {
	if p.FlashSize == 0 {
		p.FlashSize = 64 * 1024
	}
	if p.LDROMSize == 0 {
		p.LDROMSize = 4 * 1024
	}
	if p.PageSize == 0 {
		p.PageSize = DefaultPageSize
	}
	if p.BlockSize == 0 {
		p.BlockSize = DefaultBlockSize
	}
	if p.ConfigWords == 0 {
		p.ConfigWords = DefaultConfigWords
	}
	if len(p.Config) == 0 {
		// Data Flash disabled, boot from LDROM
		p.Config = []uint32{0xFFFFFF7F, 0xFFFFFFFF}
	}
}

// Validate checks that the layout is usable by the flash adapter.
func (p *Profile) Validate() error {
	switch {
	case p.PageSize == 0 || p.PageSize&(p.PageSize-1) != 0:
		return errors.New("page size must be a power of two")
	case p.BlockSize == 0 || p.BlockSize%4 != 0 || p.PageSize%p.BlockSize != 0:
		return errors.New("block size must be a word multiple dividing the page size")
	case p.FlashSize%p.PageSize != 0 || p.LDROMSize%p.PageSize != 0:
		return errors.New("flash sizes must be page multiples")
	case p.ConfigWords < 1 || p.ConfigWords > MaxConfigWords || uint32(p.ConfigWords)*4 > p.PageSize:
		return errors.New("config word count out of range")
	case len(p.Config) > p.ConfigWords:
		return errors.New("more config values than config words")
	}
	return nil
}

// DeviceInfo returns the identification the session reads at ISP entry.
func (p *Profile) DeviceInfo() DeviceInfo {
	return DeviceInfo{
		ProductID:   p.ProductID,
		FlashSize:   p.FlashSize,
		LDROMSize:   p.LDROMSize,
		PageSize:    p.PageSize,
		BlockSize:   p.BlockSize,
		ConfigWords: p.ConfigWords,
	}
}

// NewMemoryFlash returns an erased in-memory device for the profile with
// its factory CONFIG loaded.
func (p *Profile) NewMemoryFlash() *MemoryFlash {
	m := NewMemoryFlash(p.DeviceInfo())
	m.LoadConfig(p.Config...)
	return m
}

// BuiltinProfile returns a copy of a compiled-in profile.
func BuiltinProfile(name string) (*Profile, bool) {
	i := slices.IndexFunc(builtinProfiles, func(p Profile) bool {
		return p.Name == strings.ToLower(name)
	})
	if i < 0 {
		return nil, false
	}
	return builtinProfiles[i].clone(), true
}

// FindProfileByProductID returns the compiled-in profile reporting pid.
func FindProfileByProductID(pid uint32) (*Profile, bool) {
	i := slices.IndexFunc(builtinProfiles, func(p Profile) bool {
		return p.ProductID == pid
	})
	if i < 0 {
		return nil, false
	}
	return builtinProfiles[i].clone(), true
}

// BuiltinProfileNames lists the compiled-in profiles.
func BuiltinProfileNames() []string {
	names := make([]string, 0, len(builtinProfiles))
	for _, p := range builtinProfiles {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return names
}

func (p Profile) clone() *Profile {
	p.Config = append([]uint32(nil), p.Config...)
	return &p
}

func init() {
	var t struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(rawProfiles, &t); err != nil {
		panic(err)
	}
	for i := range t.Profiles {
		applyDefaults(&t.Profiles[i])
		if err := t.Profiles[i].Validate(); err != nil {
			panic(t.Profiles[i].Name + ": " + err.Error())
		}
	}
	builtinProfiles = t.Profiles
}
