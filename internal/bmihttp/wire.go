// Package bmihttp carries the bmi capability set over JSON/HTTP.
//
// Server wraps any in-process handle; Client is a handle whose every call is
// a request to such a server. The transport stays out of the renderer's way:
// the renderer only ever sees bmi interfaces.
package bmihttp

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Error kinds sent in error responses.
const (
	KindUnknownVariable = "unknown_variable"
	KindUnsupported     = "unsupported"
	KindBadRequest      = "bad_request"
	KindForbidden       = "forbidden"
	KindModel           = "model_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type componentResponse struct {
	Name string `json:"name"`
}

type namesResponse struct {
	Names []string `json:"names"`
}

type timeResponse struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Current float64 `json:"current"`
	Step    float64 `json:"step"`
	Units   string  `json:"units"`
}

type gridIDResponse struct {
	Grid int `json:"grid"`
}

type unitsResponse struct {
	Units string `json:"units"`
}

type gridTypeResponse struct {
	Type string `json:"type"`
}

type countResponse struct {
	Count int `json:"count"`
}

type facesResponse struct {
	Nodes []int `json:"nodes"`
}

type valuesBody struct {
	Values floats `json:"values"`
}

type initializeRequest struct {
	Config string `json:"config"`
}

type updateRequest struct {
	Time float64 `json:"time"`
}

// floats encodes NaN and ±Inf as null, which JSON numbers cannot express.
// null decodes back to NaN.
type floats []float64

func (f floats) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("[]"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			buf.WriteString("null")
			continue
		}
		buf.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func (f *floats) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(floats, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*f = out
	return nil
}
