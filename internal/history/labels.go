package history

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/goatkit/pesflow/internal/models"
)

//go:embed fields.yaml
var fieldsYAML []byte

type fieldLayout struct {
	Fields map[string]string `yaml:"fields"`
}

var (
	labelsOnce sync.Once
	labels     map[models.Field]string
	labelsErr  error
)

func loadLabels() {
	labels, labelsErr = parseLabels(fieldsYAML)
}

func parseLabels(raw []byte) (map[models.Field]string, error) {
	var layout fieldLayout
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return nil, fmt.Errorf("failed to parse field layout: %w", err)
	}
	out := make(map[models.Field]string, len(layout.Fields))
	for name, label := range layout.Fields {
		f := models.Field(name)
		if !f.IsKnown() {
			return nil, fmt.Errorf("field layout names unknown field %q", name)
		}
		out[f] = label
	}
	return out, nil
}

// Label returns the display label of f, falling back to the field name.
func Label(f models.Field) string {
	labelsOnce.Do(loadLabels)
	if l, ok := labels[f]; ok && l != "" {
		return l
	}
	return string(f)
}

// LabelsError reports a broken embedded layout. Label keeps working with
// field names when it is non-nil.
func LabelsError() error {
	labelsOnce.Do(loadLabels)
	return labelsErr
}
