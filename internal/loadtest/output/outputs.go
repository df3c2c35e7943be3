package output

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wesleyorama2/surge/internal/loadtest/engine"
)

// Parse builds the outputs named by --out arguments of the form
// "kind=argument", e.g. "json=samples.json".
func Parse(specs []string, logger *zap.Logger) ([]engine.Output, error) {
	outputs := make([]engine.Output, 0, len(specs))
	for _, spec := range specs {
		kind, arg, _ := strings.Cut(spec, "=")
		switch strings.TrimSpace(kind) {
		case "json":
			if arg == "" {
				return nil, fmt.Errorf("output %q: missing file name (json=path)", spec)
			}
			outputs = append(outputs, NewJSONOutput(arg, logger))
		default:
			return nil, fmt.Errorf("unknown output %q (supported: json)", kind)
		}
	}
	return outputs, nil
}
