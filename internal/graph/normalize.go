package graph

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

const (
	dateLayout          = "2006-01-02"
	localTimeLayout     = "15:04:05.999999999"
	localDateTimeLayout = "2006-01-02T15:04:05.999999999"
	offsetTimeLayout    = "15:04:05.999999999Z07:00"
)

// Normalize converts a store-native value into a transport-safe value.
// Temporal, spatial and graph-entity values become their string form;
// JSON-safe scalars and containers are returned unchanged.
func Normalize(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number, []byte:
		return x, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			n, err := Normalize(item)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case dbtype.Node:
		return formatNode(x)
	case dbtype.Relationship:
		return formatRelationship(x)
	case dbtype.Path:
		return formatPath(x)
	case dbtype.Point2D:
		return fmt.Sprintf("point({srid: %d, x: %s, y: %s})",
			x.SpatialRefId, formatFloat(x.X), formatFloat(x.Y)), nil
	case dbtype.Point3D:
		return fmt.Sprintf("point({srid: %d, x: %s, y: %s, z: %s})",
			x.SpatialRefId, formatFloat(x.X), formatFloat(x.Y), formatFloat(x.Z)), nil
	case dbtype.Date:
		return time.Time(x).Format(dateLayout), nil
	case dbtype.LocalTime:
		return time.Time(x).Format(localTimeLayout), nil
	case dbtype.LocalDateTime:
		return time.Time(x).Format(localDateTimeLayout), nil
	case dbtype.Time:
		return time.Time(x).Format(offsetTimeLayout), nil
	case dbtype.Duration:
		return formatDuration(x), nil
	case time.Time:
		return x.Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return nil, NewSerializationError(fmt.Sprintf("unsupported result value of type %T", v), nil)
	}
}

func formatNode(n dbtype.Node) (string, error) {
	props, err := formatProps(n.Props)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("(")
	for _, label := range n.Labels {
		b.WriteString(":")
		b.WriteString(label)
	}
	if props != "" {
		if len(n.Labels) > 0 {
			b.WriteString(" ")
		}
		b.WriteString(props)
	}
	b.WriteString(")")
	return b.String(), nil
}

func formatRelationship(r dbtype.Relationship) (string, error) {
	props, err := formatProps(r.Props)
	if err != nil {
		return "", err
	}
	s := "[:" + r.Type
	if props != "" {
		s += " " + props
	}
	return s + "]", nil
}

func formatPath(p dbtype.Path) (string, error) {
	if len(p.Nodes) == 0 {
		return "", nil
	}
	var b strings.Builder
	first, err := formatNode(p.Nodes[0])
	if err != nil {
		return "", err
	}
	b.WriteString(first)

	for i, rel := range p.Relationships {
		if i+1 >= len(p.Nodes) {
			break
		}
		relStr, err := formatRelationship(rel)
		if err != nil {
			return "", err
		}
		next, err := formatNode(p.Nodes[i+1])
		if err != nil {
			return "", err
		}
		if rel.StartElementId == p.Nodes[i].ElementId {
			b.WriteString("-" + relStr + "->")
		} else {
			b.WriteString("<-" + relStr + "-")
		}
		b.WriteString(next)
	}
	return b.String(), nil
}

// formatProps renders properties as {key: value} with sorted keys.
func formatProps(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := Normalize(props[k])
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", NewSerializationError(fmt.Sprintf("property %q is not serializable", k), err)
		}
		parts = append(parts, k+": "+string(encoded))
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatDuration renders an ISO-8601 duration such as "P1M2DT3.5S".
func formatDuration(d dbtype.Duration) string {
	var b strings.Builder
	b.WriteString("P")
	if d.Months != 0 {
		fmt.Fprintf(&b, "%dM", d.Months)
	}
	if d.Days != 0 {
		fmt.Fprintf(&b, "%dD", d.Days)
	}
	if d.Seconds != 0 || d.Nanos != 0 {
		b.WriteString("T")
		if d.Nanos == 0 {
			fmt.Fprintf(&b, "%dS", d.Seconds)
		} else {
			frac := strings.TrimRight(fmt.Sprintf("%09d", d.Nanos), "0")
			fmt.Fprintf(&b, "%d.%sS", d.Seconds, frac)
		}
	}
	if b.Len() == 1 {
		return "PT0S"
	}
	return b.String()
}

// checkParams verifies every parameter is JSON-representable.
func checkParams(params map[string]any) error {
	for name, value := range params {
		if err := checkParamValue(reflect.ValueOf(value)); err != nil {
			return NewValidationError(fmt.Sprintf("parameter %q: %v", name, err))
		}
	}
	return nil
}

func checkParamValue(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite number %v", f)
		}
		return nil
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := checkParamValue(v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("map keys must be strings, got %s", v.Type().Key())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := checkParamValue(iter.Value()); err != nil {
				return err
			}
		}
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkParamValue(v.Elem())
	default:
		return fmt.Errorf("unsupported type %s", v.Type())
	}
}
