package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
)

func marshalJSONB(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// pqTextArray renders a Go string slice as a Postgres text[] array literal,
// quoting each element; pgx accepts this literal form for TEXT[] columns.
func pqTextArray(values []string) string {
	if len(values) == 0 {
		return "{}"
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		escaped := strings.ReplaceAll(v, `"`, `\"`)
		quoted[i] = fmt.Sprintf(`"%s"`, escaped)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// vectorLiteral wraps a []float32 as a pgvector.Vector, which implements
// driver.Valuer so it encodes straight into the vector(D) column.
func vectorLiteral(v []float32) pgvector.Vector {
	return pgvector.NewVector(v)
}
