package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// GroupValueRef is one entry of a production group's group_value column:
// a work-order layer pulled into the group.
type GroupValueRef struct {
	WorkOrderId int `json:"work_order_id"`
	LayerId     int `json:"layer_id"`
}

// ParsedGroupValue is the lenient parse result of a group_value column.
// ParseFailed distinguishes corrupt data from a genuinely empty list so
// callers can log it without failing the request.
type ParsedGroupValue struct {
	Refs        []GroupValueRef
	ParseFailed bool
}

func ParseGroupValue(raw string) ParsedGroupValue {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return ParsedGroupValue{}
	}
	var refs []GroupValueRef
	if err := json.Unmarshal([]byte(raw), &refs); err != nil {
		return ParsedGroupValue{ParseFailed: true}
	}
	return ParsedGroupValue{Refs: refs}
}

// ParsedSkuLayers is the lenient parse result of a work order's
// work_order_sku_values column. Layer objects keep their original fields;
// only layer_id is interpreted here.
type ParsedSkuLayers struct {
	Layers      []map[string]any
	ParseFailed bool
}

func ParseWorkOrderSkuValues(raw string) ParsedSkuLayers {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return ParsedSkuLayers{}
	}
	var layers []map[string]any
	if err := json.Unmarshal([]byte(raw), &layers); err != nil {
		return ParsedSkuLayers{ParseFailed: true}
	}
	return ParsedSkuLayers{Layers: layers}
}

// LayerIdOf extracts the layer_id of a parsed layer object. JSON numbers
// decode as float64; older mobile builds wrote string ids.
func LayerIdOf(layer map[string]any) (int, bool) {
	v, ok := layer["layer_id"]
	if !ok {
		return 0, false
	}
	switch id := v.(type) {
	case float64:
		return int(id), true
	case string:
		n, err := strconv.Atoi(id)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
