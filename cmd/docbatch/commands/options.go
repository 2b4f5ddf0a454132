package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/docbatch/constants"
	"github.com/joseph-ayodele/docbatch/internal/ingest"
)

// parseOptions turns repeated key=value flags into an option bag. Values
// that parse as JSON keep their JSON type; anything else is a string.
func parseOptions(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("option %q must be key=value", p)
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out, nil
}

func parseOperation(name string) (constants.Operation, error) {
	op, ok := constants.ParseOperation(name)
	if !ok {
		names := make([]string, 0, 8)
		for _, o := range constants.Operations() {
			names = append(names, string(o))
		}
		return "", fmt.Errorf("unknown operation %q (one of %s)", name, strings.Join(names, ", "))
	}
	return op, nil
}

// collectInputs joins explicit files with the matching files under dir.
func collectInputs(op constants.Operation, files []string, dir string) ([]string, error) {
	inputs := append([]string(nil), files...)
	if dir != "" {
		found, _, err := ingest.ListFiles(dir, constants.InputExtensions(op), true)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, found...)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no input files: pass files or --dir")
	}
	return inputs, nil
}
