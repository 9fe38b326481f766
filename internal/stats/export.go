package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gramevo/internal/genotype"
	"gramevo/internal/model"
)

const (
	ExportDir    = "best_genotypes"
	exportPrefix = "best_genotype_"
	exportSuffix = ".json"
	exportDigits = 4
)

// ExportFileName names the best-network snapshot of a generation. The
// generation is the fixed-width suffix before the extension.
func ExportFileName(generation int) string {
	return fmt.Sprintf("%s%0*d%s", exportPrefix, exportDigits, generation, exportSuffix)
}

// ParseExportGeneration recovers the generation from an export file name.
func ParseExportGeneration(name string) (int, error) {
	base := filepath.Base(name)
	if !strings.HasPrefix(base, exportPrefix) || !strings.HasSuffix(base, exportSuffix) {
		return 0, fmt.Errorf("not a best genotype export: %s", base)
	}
	digits := strings.TrimSuffix(base, exportSuffix)
	if len(digits) < exportDigits {
		return 0, fmt.Errorf("export name %s has no generation suffix", base)
	}
	digits = digits[len(digits)-exportDigits:]
	gen, err := strconv.Atoi(digits)
	if err != nil || gen < 0 {
		return 0, fmt.Errorf("export name %s: invalid generation %q", base, digits)
	}
	return gen, nil
}

type BestExport struct {
	Generation int              `json:"generation"`
	Accuracy   float64          `json:"accuracy"`
	Network    genotype.Network `json:"network"`
}

// WriteBestExport writes the generation's best network under
// runDir/best_genotypes and returns the file path.
func WriteBestExport(runDir string, export BestExport) (string, error) {
	dir := filepath.Join(runDir, ExportDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ExportFileName(export.Generation))
	if err := writeJSON(path, export); err != nil {
		return "", err
	}
	return path, nil
}

func ReadBestExport(path string) (BestExport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BestExport{}, err
	}
	var export BestExport
	if err := json.Unmarshal(data, &export); err != nil {
		return BestExport{}, fmt.Errorf("decode %s: %w", path, err)
	}
	v := export.Network.VersionedRecord
	if v.SchemaVersion != model.CurrentSchemaVersion || v.CodecVersion != model.CurrentCodecVersion {
		return BestExport{}, fmt.Errorf("%s: unsupported record version schema=%d codec=%d", path, v.SchemaVersion, v.CodecVersion)
	}
	gen, err := ParseExportGeneration(path)
	if err != nil {
		return BestExport{}, err
	}
	if gen != export.Generation {
		return BestExport{}, fmt.Errorf("%s: file generation %d != recorded generation %d", path, gen, export.Generation)
	}
	return export, nil
}

// ListBestExports returns the export paths under runDir ordered by
// generation.
func ListBestExports(runDir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(runDir, ExportDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	type indexed struct {
		path string
		gen  int
	}
	found := make([]indexed, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		gen, err := ParseExportGeneration(entry.Name())
		if err != nil {
			continue
		}
		found = append(found, indexed{path: filepath.Join(runDir, ExportDir, entry.Name()), gen: gen})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].gen < found[j].gen })

	out := make([]string, len(found))
	for i := range found {
		out[i] = found[i].path
	}
	return out, nil
}
