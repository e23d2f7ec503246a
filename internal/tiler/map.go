package tiler

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
)

// layerDescription is the description carried by the single vector layer.
const layerDescription = "Point layer imported from GeoJSON."

// TileMap 瓦片地图元数据, one metadata row per non-empty field
type TileMap struct {
	Name        string
	Description string
	Attribution string
	Min         int
	Max         int
	Format      string
	Bounds      string
	Center      string
	Type        string
	Version     int
}

// Rows returns the fixed metadata rows in insertion order.
func (m *TileMap) Rows() [][2]string {
	rows := [][2]string{
		{"name", m.Name},
		{"format", m.Format},
		{"minzoom", strconv.Itoa(m.Min)},
		{"maxzoom", strconv.Itoa(m.Max)},
		{"bounds", m.Bounds},
		{"center", m.Center},
		{"type", m.Type},
		{"version", strconv.Itoa(m.Version)},
	}
	if m.Attribution != "" {
		rows = append(rows, [2]string{"attribution", m.Attribution})
	}
	if m.Description != "" {
		rows = append(rows, [2]string{"description", m.Description})
	}
	return rows
}

type vectorLayer struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Fields      FieldSchema `json:"fields"`
}

type layerDescriptor struct {
	VectorLayers []vectorLayer `json:"vector_layers"`
}

// LayerJSON builds the "json" metadata value describing the single layer.
// fields must be the schema of the completed traversal.
func (m *TileMap) LayerJSON(layer string, fields FieldSchema) (string, error) {
	if fields == nil {
		fields = FieldSchema{}
	}
	data, err := json.Marshal(layerDescriptor{
		VectorLayers: []vectorLayer{{
			ID:          layer,
			Description: layerDescription,
			Fields:      fields,
		}},
	})
	if err != nil {
		return "", errors.Wrap(err, "marshal layer descriptor")
	}
	return string(data), nil
}
