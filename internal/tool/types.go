package tool

import (
	"encoding/json"
	"time"

	"github.com/barabonda/linkbrain/internal/types"
)

// Parameter describes one named argument of a tool.
type Parameter struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Types lists the accepted JSON Schema types; the first is the primary one.
	Types    []string `json:"type"`
	Required bool     `json:"required"`
}

// Descriptor is the catalog entry for a tool.
type Descriptor struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	Returns     string      `json:"returns,omitempty"`

	// InputSchema, when set, is used verbatim instead of the schema derived
	// from Parameters. Remote tools carry their own schema this way.
	InputSchema json.RawMessage `json:"input_schema,omitempty"`

	// Remote marks proxies for tools served by another process.
	Remote bool `json:"remote,omitempty"`
}

// Schema returns the JSON Schema object for the tool's arguments.
func (d Descriptor) Schema() (json.RawMessage, error) {
	if len(d.InputSchema) > 0 {
		return d.InputSchema, nil
	}

	properties := make(map[string]any, len(d.Parameters))
	required := make([]string, 0, len(d.Parameters))
	for _, p := range d.Parameters {
		prop := map[string]any{}
		switch len(p.Types) {
		case 0:
		case 1:
			prop["type"] = p.Types[0]
		default:
			prop["type"] = p.Types
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return json.Marshal(map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	})
}

// Response is the result envelope of one invocation. Result is null when
// Success is false and Error is null when Success is true.
type Response struct {
	Success bool
	Result  json.RawMessage
	Error   string
	Code    types.ErrorCode
}

type responseJSON struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   *string         `json:"error"`
	Code    types.ErrorCode `json:"code,omitempty"`
}

// MarshalJSON encodes the envelope with explicit nulls.
func (r Response) MarshalJSON() ([]byte, error) {
	out := responseJSON{Success: r.Success, Result: r.Result, Code: r.Code}
	if !r.Success {
		out.Result = nil
		msg := r.Error
		out.Error = &msg
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an envelope produced by MarshalJSON.
func (r *Response) UnmarshalJSON(data []byte) error {
	var in responseJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Success = in.Success
	r.Result = in.Result
	r.Code = in.Code
	r.Error = ""
	if in.Error != nil {
		r.Error = *in.Error
	}
	if string(r.Result) == "null" {
		r.Result = nil
	}
	return nil
}

// String returns the JSON encoding, as fed back to a model.
func (r Response) String() string {
	data, err := json.Marshal(r)
	if err != nil {
		return `{"success":false,"result":null,"error":"response encoding failed","code":"SERIALIZATION_ERROR"}`
	}
	return string(data)
}

// Err returns the failure as a coded error, or nil on success.
func (r Response) Err() error {
	if r.Success {
		return nil
	}
	return types.NewError(r.Code, r.Error)
}

// Success wraps an encoded result.
func Success(result json.RawMessage) Response {
	return Response{Success: true, Result: result}
}

// Failure wraps err, keeping its code; uncoded errors become UNKNOWN_ERROR.
func Failure(err error) Response {
	code := types.CodeOf(err)
	if code == "" {
		code = types.ErrCodeUnknown
	}
	return Response{Success: false, Error: err.Error(), Code: code}
}

// ToolMetrics tracks invocation statistics for one tool.
type ToolMetrics struct {
	TotalCalls     int64         `json:"total_calls"`
	SuccessCalls   int64         `json:"success_calls"`
	FailedCalls    int64         `json:"failed_calls"`
	TotalDuration  time.Duration `json:"total_duration"`
	AvgDuration    time.Duration `json:"avg_duration"`
	LastExecutedAt *time.Time    `json:"last_executed_at,omitempty"`
}

func (m *ToolMetrics) record(duration time.Duration, ok bool) {
	m.TotalCalls++
	if ok {
		m.SuccessCalls++
	} else {
		m.FailedCalls++
	}
	m.TotalDuration += duration
	m.AvgDuration = m.TotalDuration / time.Duration(m.TotalCalls)
	now := time.Now()
	m.LastExecutedAt = &now
}

// SuccessRate returns the fraction of successful calls, or 0 with no calls.
func (m ToolMetrics) SuccessRate() float64 {
	if m.TotalCalls == 0 {
		return 0.0
	}
	return float64(m.SuccessCalls) / float64(m.TotalCalls)
}
