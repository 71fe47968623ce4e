package filtmgr

import (
	"os"
	"strings"

	"github.com/oriys/bloomd/internal/bloom"
	"github.com/oriys/bloomd/internal/logging"
)

// folderPrefix is the literal, fixed-length prefix every filter's
// on-disk directory carries. Its length, not just its bytes, is
// load-bearing: the filter's name is everything after the first 7
// bytes of the folder name.
const folderPrefix = "bloomd."

// discover scans dataDir for filter folders and builds the index for
// an initial version. A folder whose filter fails to load is logged
// and skipped; it does not fail discovery as a whole.
func discover(dataDir string, defaultCfg bloom.Config) map[string]*wrapper {
	index := make(map[string]*wrapper)

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		logging.Op().Warn("filtmgr: discovery scan failed", "dir", dataDir, "error", err)
		return index
	}

	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), folderPrefix) {
			continue
		}
		name := entry.Name()[len(folderPrefix):]
		if name == "" {
			continue
		}

		f, err := bloom.New(defaultCfg, dataDir, name, true)
		if err != nil {
			logging.Op().Warn("filtmgr: discovery failed for filter", "name", name, "error", err)
			continue
		}

		w := newWrapper(f, nil)
		w.isHot.Store(false)
		index[name] = w
	}

	return index
}
