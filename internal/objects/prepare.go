package objects

import (
	"fmt"

	"github.com/CanoaPBC/speckle-server/internal/core"
)

// defaultSpeckleType tags objects whose payload does not carry one.
const defaultSpeckleType = "Base"

// prepare turns a raw document into an insertable object row plus the
// closure edges from its depth map. The id is assigned here, synchronously,
// before any write is dispatched. The stored payload keeps its id but drops
// the transient closure map; envelope fields mirror well-known payload keys.
func prepare(raw core.Document) (*core.Object, []core.ClosureEdge, error) {
	id := stringField(raw, idKey)
	if id == "" {
		var err error
		id, err = HashObject(raw)
		if err != nil {
			return nil, nil, err
		}
	}

	closure, err := closureMap(raw)
	if err != nil {
		return nil, nil, err
	}

	data := make(core.Document, len(raw))
	for k, v := range raw {
		if k == closureKey {
			continue
		}
		data[k] = v
	}
	data[idKey] = id

	obj := &core.Object{
		ID:            id,
		SpeckleType:   defaultSpeckleType,
		ApplicationID: stringField(raw, "applicationId"),
		Description:   stringField(raw, "description"),
		Author:        stringField(raw, "author"),
		Data:          data,
	}
	if t := stringField(raw, "speckle_type"); t != "" {
		obj.SpeckleType = t
	}

	edges := make([]core.ClosureEdge, 0, len(closure))
	byDepth := make(map[int]int)
	for child, depth := range closure {
		edges = append(edges, core.ClosureEdge{Parent: id, Child: child, MinDepth: depth})
		byDepth[depth]++
	}
	obj.TotalChildrenCount = len(closure)
	if len(byDepth) > 0 {
		obj.ChildrenCountByDepth = byDepth
	}

	return obj, edges, nil
}

// closureMap extracts the caller-supplied descendant depth map. Depth values
// arrive as JSON numbers or native ints depending on the caller.
func closureMap(raw core.Document) (map[string]int, error) {
	value, ok := raw[closureKey]
	if !ok || value == nil {
		return nil, nil
	}

	result := make(map[string]int)
	switch m := value.(type) {
	case map[string]int:
		for child, depth := range m {
			result[child] = depth
		}
	case map[string]any:
		for child, depth := range m {
			switch d := depth.(type) {
			case float64:
				result[child] = int(d)
			case int:
				result[child] = d
			default:
				return nil, fmt.Errorf("closure depth for %q is not a number", child)
			}
		}
	default:
		return nil, fmt.Errorf("closure map has unexpected type %T", value)
	}
	return result, nil
}

func stringField(doc core.Document, key string) string {
	if s, ok := doc[key].(string); ok {
		return s
	}
	return ""
}
