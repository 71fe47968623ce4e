package bloom

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	metaFileName = "meta.json"
	dataFileName = "data.bin"
)

// tierMeta is the on-disk description of a single tier, enough to
// reconstruct its bit array's shape without re-deriving sizing formulas
// that could theoretically change between versions.
type tierMeta struct {
	M        uint64  `json:"m"`
	K        int     `json:"k"`
	Capacity uint64  `json:"capacity"`
	FPRate   float64 `json:"fp_rate"`
	Count    uint64  `json:"count"`
}

// fileMeta is the full on-disk metadata for a filter: its config and
// the shape of each tier, in growth order.
type fileMeta struct {
	Config Config     `json:"config"`
	Tiers  []tierMeta `json:"tiers"`
}

// filterDir returns the directory a named filter persists into. The
// literal "bloomd." prefix matches the one filtmgr's discovery walk
// looks for, so a filter created here is found on the next restart.
func filterDir(dataDir, name string) string {
	return filepath.Join(dataDir, "bloomd."+name)
}

// save writes meta.json and data.bin for f, creating the filter's
// directory if it does not already exist. It is called under f.mu.
func (f *Filter) save() error {
	dir := filterDir(f.dir, f.name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bloom: create filter dir: %w", err)
	}

	meta := fileMeta{Config: f.cfg}
	for _, t := range f.tiers {
		meta.Tiers = append(meta.Tiers, tierMeta{
			M:        t.m,
			K:        t.k,
			Capacity: t.capacity,
			FPRate:   t.fpRate,
			Count:    t.count.Load(),
		})
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("bloom: marshal meta: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), metaBytes, 0o644); err != nil {
		return fmt.Errorf("bloom: write meta: %w", err)
	}

	dataPath := filepath.Join(dir, dataFileName)
	tmp := dataPath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("bloom: create data file: %w", err)
	}
	defer file.Close()

	w := make([]byte, 8)
	for _, t := range f.tiers {
		for _, word := range t.bits {
			binary.LittleEndian.PutUint64(w, word)
			if _, err := file.Write(w); err != nil {
				return fmt.Errorf("bloom: write data: %w", err)
			}
		}
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("bloom: sync data: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("bloom: close data: %w", err)
	}
	return os.Rename(tmp, dataPath)
}

// load reads meta.json and data.bin for name out of dataDir and
// rebuilds the in-memory tier slice. It returns (nil, nil, false, nil)
// if the filter directory does not exist.
func load(dataDir, name string) (*fileMeta, []*tier, bool, error) {
	dir := filterDir(dataDir, name)
	metaBytes, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if os.IsNotExist(err) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, fmt.Errorf("bloom: read meta: %w", err)
	}

	var meta fileMeta
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, nil, false, fmt.Errorf("bloom: unmarshal meta: %w", err)
	}

	dataBytes, err := os.ReadFile(filepath.Join(dir, dataFileName))
	if err != nil {
		return nil, nil, false, fmt.Errorf("bloom: read data: %w", err)
	}

	tiers := make([]*tier, 0, len(meta.Tiers))
	offset := 0
	for _, tm := range meta.Tiers {
		words := int((tm.M + 63) / 64)
		t := &tier{
			m:        tm.M,
			k:        tm.K,
			capacity: tm.Capacity,
			fpRate:   tm.FPRate,
			bits:     make([]uint64, words),
		}
		t.count.Store(tm.Count)
		for i := 0; i < words; i++ {
			start := offset + i*8
			if start+8 > len(dataBytes) {
				return nil, nil, false, fmt.Errorf("bloom: truncated data file for %q", name)
			}
			t.bits[i] = binary.LittleEndian.Uint64(dataBytes[start : start+8])
		}
		offset += words * 8
		tiers = append(tiers, t)
	}

	return &meta, tiers, true, nil
}

// removeAll deletes a filter's persisted directory entirely.
func removeAll(dataDir, name string) error {
	if err := os.RemoveAll(filterDir(dataDir, name)); err != nil {
		return fmt.Errorf("bloom: remove filter dir: %w", err)
	}
	return nil
}
