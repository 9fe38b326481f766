package genotype

import (
	"fmt"
	"io"
	"strings"
)

// Describe writes one line per module: its position, channel interface and
// layers in order.
func (n Network) Describe(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "network %s input=%dx%dx%d flattened=%d\n",
		n.ID, n.InputChannels, n.InputSize, n.InputSize, n.FlattenedFeatureSize()); err != nil {
		return err
	}
	for _, section := range [][]Module{n.Features, n.Classification, n.LastLayer} {
		for i, m := range section {
			layers := make([]string, len(m.Layers))
			for j, layer := range m.Layers {
				layers[j] = layerToken(layer)
			}
			if _, err := fmt.Fprintf(w, "  %s[%d] %d->%d: %s\n",
				m.Kind, i, m.IO.InputChannels, m.IO.OutputChannels, strings.Join(layers, " ")); err != nil {
				return err
			}
		}
	}
	return nil
}
