package pongo

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

var defaultFilters = map[string]pongo2.FilterFunction{
	"trim":       filterTrim,
	"input_type": filterInputType,
	"dom_id":     filterDOMID,
	"filesize":   filterFileSize,
}

func registerDefaultFilters() {
	for name, fn := range defaultFilters {
		if !pongo2.FilterExists(name) {
			_ = pongo2.RegisterFilter(name, fn)
		}
	}
}

func filterTrim(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.Len() <= 0 {
		return pongo2.AsValue(""), nil
	}
	return pongo2.AsValue(strings.TrimSpace(in.String())), nil
}

// filterInputType maps a schema field type onto the HTML input type.
func filterInputType(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	switch in.String() {
	case "url":
		return pongo2.AsValue("url"), nil
	case "file":
		return pongo2.AsValue("file"), nil
	default:
		return pongo2.AsValue("text"), nil
	}
}

// filterDOMID turns a field id into an element id: `{{ "industry"|dom_id:"field" }}`
// gives "field-industry".
func filterDOMID(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.TrimSpace(in.String()))

	prefix := ""
	if param != nil && !param.IsNil() {
		prefix = strings.TrimSpace(param.String())
	}
	if prefix == "" {
		return pongo2.AsValue(id), nil
	}
	return pongo2.AsValue(prefix + "-" + id), nil
}

func filterFileSize(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if !in.IsNumber() {
		return pongo2.AsValue(""), nil
	}
	size := in.Float()
	units := []string{"B", "KB", "MB", "GB"}
	unit := 0
	for size >= 1024 && unit < len(units)-1 {
		size /= 1024
		unit++
	}
	if unit == 0 {
		return pongo2.AsValue(fmt.Sprintf("%d %s", int64(size), units[unit])), nil
	}
	return pongo2.AsValue(fmt.Sprintf("%.1f %s", size, units[unit])), nil
}
