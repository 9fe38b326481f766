package stats

import (
	"fmt"
	"os"
	"path/filepath"

	"gramevo/internal/genotype"
)

const BestOrganismFile = "best_organism.txt"

// WriteBestOrganism writes a readable summary of the final best network.
func WriteBestOrganism(runDir string, accuracy float64, net genotype.Network) (string, error) {
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(runDir, BestOrganismFile)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "Best organism accuracy: %g %%\n", accuracy); err != nil {
		return "", err
	}
	if err := net.Describe(file); err != nil {
		return "", err
	}
	return path, file.Close()
}
