package raster

import "maps"

// Data types recorded in Profile.DataType.
const (
	Float32 = "float32"
	Float64 = "float64"
	Uint8   = "uint8"
	Int16   = "int16"
	Uint16  = "uint16"
)

// Profile is the spatial metadata that accompanies a grid. The core never
// interprets it; ForOutput is the only sanctioned modification.
type Profile struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	CRS       string            `json:"crs,omitempty"`
	Transform [6]float64        `json:"transform"`
	CellSize  float64           `json:"cell_size,omitempty"`
	NoData    *float64          `json:"nodata,omitempty"`
	DataType  string            `json:"dtype"`
	Count     int               `json:"count"`
	Driver    string            `json:"driver,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// ForOutput returns a copy of p with only DataType and Count rewritten.
func (p Profile) ForOutput(dataType string, count int) Profile {
	out := p
	out.DataType = dataType
	out.Count = count
	if p.NoData != nil {
		v := *p.NoData
		out.NoData = &v
	}
	out.Tags = maps.Clone(p.Tags)
	return out
}

// Matches reports whether the profile describes a raster of shape s.
// A zero-sized profile matches anything.
func (p Profile) Matches(s Shape) bool {
	if p.Width == 0 && p.Height == 0 {
		return true
	}
	return p.Width == s.Cols && p.Height == s.Rows
}
