package bmihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/bmiview/internal/bmi"
)

// DefaultTimeout bounds every request unless WithTimeout says otherwise.
const DefaultTimeout = 30 * time.Second

// ErrBufferSize reports a remote array whose length differs from the
// caller's buffer.
var ErrBufferSize = errors.New("bmihttp: remote array does not match buffer")

// RemoteError is a failure reported by the server. It is never retried.
type RemoteError struct {
	Status  int
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bmihttp: remote %d %s: %s", e.Status, e.Kind, e.Message)
}

var _ bmi.BMI = (*Client)(nil)
var _ bmi.NodeCoordinates = (*Client)(nil)

// Client is a model handle backed by a Server.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a handle for the server at addr. A bare host:port gets
// an http:// scheme.
func NewClient(addr string, opts ...ClientOption) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	c := &Client{
		base:    strings.TrimRight(addr, "/"),
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

func (c *Client) call(method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug("bmi call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode >= 300 {
		var e errorResponse
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &e); err != nil || e.Error == "" {
			e = errorResponse{Error: strings.TrimSpace(string(data)), Kind: KindModel}
		}
		return &RemoteError{Status: resp.StatusCode, Kind: e.Kind, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// varCall is call for variable routes; an unknown-variable response becomes
// a *bmi.UnknownVariableError naming the variable.
func (c *Client) varCall(method, name, suffix string, in, out any) error {
	err := c.call(method, "/vars/"+url.PathEscape(name)+suffix, in, out)
	var re *RemoteError
	if errors.As(err, &re) && re.Kind == KindUnknownVariable {
		return &bmi.UnknownVariableError{Name: name}
	}
	return err
}

func (c *Client) GetComponentName() (string, error) {
	var resp componentResponse
	if err := c.call(http.MethodGet, "/component", nil, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

func (c *Client) GetOutputVarNames() ([]string, error) {
	var resp namesResponse
	if err := c.call(http.MethodGet, "/vars?kind=output", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *Client) GetInputVarNames() ([]string, error) {
	var resp namesResponse
	if err := c.call(http.MethodGet, "/vars?kind=input", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *Client) GetVarGrid(name string) (bmi.GridID, error) {
	var resp gridIDResponse
	if err := c.varCall(http.MethodGet, name, "/grid", nil, &resp); err != nil {
		return 0, err
	}
	return bmi.GridID(resp.Grid), nil
}

func (c *Client) GetVarUnits(name string) (string, error) {
	var resp unitsResponse
	if err := c.varCall(http.MethodGet, name, "/units", nil, &resp); err != nil {
		return "", err
	}
	return resp.Units, nil
}

func (c *Client) GetValue(name string, dest []float64) error {
	var resp valuesBody
	if err := c.varCall(http.MethodGet, name, "/value", nil, &resp); err != nil {
		return err
	}
	return fill(dest, resp.Values)
}

func (c *Client) SetValue(name string, src []float64) error {
	return c.varCall(http.MethodPut, name, "/value", valuesBody{Values: src}, nil)
}

// fill copies a remote array into dest. A short reply would leave stale
// entries behind, so lengths must match exactly.
func fill(dest, src []float64) error {
	if len(dest) != len(src) {
		return fmt.Errorf("%w: remote sent %d values for %d", ErrBufferSize, len(src), len(dest))
	}
	copy(dest, src)
	return nil
}

func (c *Client) GetGridType(id bmi.GridID) (string, error) {
	var resp gridTypeResponse
	if err := c.call(http.MethodGet, fmt.Sprintf("/grids/%d/type", id), nil, &resp); err != nil {
		return "", err
	}
	return resp.Type, nil
}

func (c *Client) gridCount(id bmi.GridID, query string) (int, error) {
	var resp countResponse
	if err := c.call(http.MethodGet, fmt.Sprintf("/grids/%d/%s", id, query), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) GetGridRank(id bmi.GridID) (int, error) {
	return c.gridCount(id, "rank")
}

func (c *Client) GetGridSize(id bmi.GridID) (int, error) {
	return c.gridCount(id, "size")
}

func (c *Client) GetGridFaceCount(id bmi.GridID) (int, error) {
	return c.gridCount(id, "face_count")
}

func (c *Client) GetGridFaceNodes(id bmi.GridID, dest []int) error {
	var resp facesResponse
	if err := c.call(http.MethodGet, fmt.Sprintf("/grids/%d/faces", id), nil, &resp); err != nil {
		return err
	}
	if len(dest) != len(resp.Nodes) {
		return &bmi.MalformedConnectivityError{
			Length: len(resp.Nodes),
			Reason: fmt.Sprintf("remote sent %d indices for a buffer of %d", len(resp.Nodes), len(dest)),
		}
	}
	copy(dest, resp.Nodes)
	return nil
}

func (c *Client) GetGridX(id bmi.GridID, dest []float64) error {
	return c.coords(id, "x", dest)
}

func (c *Client) GetGridY(id bmi.GridID, dest []float64) error {
	return c.coords(id, "y", dest)
}

func (c *Client) coords(id bmi.GridID, axis string, dest []float64) error {
	var resp valuesBody
	if err := c.call(http.MethodGet, fmt.Sprintf("/grids/%d/%s", id, axis), nil, &resp); err != nil {
		return err
	}
	return fill(dest, resp.Values)
}

func (c *Client) clock() (*timeResponse, error) {
	var resp timeResponse
	if err := c.call(http.MethodGet, "/time", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetStartTime() (float64, error) {
	t, err := c.clock()
	if err != nil {
		return 0, err
	}
	return t.Start, nil
}

func (c *Client) GetEndTime() (float64, error) {
	t, err := c.clock()
	if err != nil {
		return 0, err
	}
	return t.End, nil
}

func (c *Client) GetCurrentTime() (float64, error) {
	t, err := c.clock()
	if err != nil {
		return 0, err
	}
	return t.Current, nil
}

func (c *Client) GetTimeStep() (float64, error) {
	t, err := c.clock()
	if err != nil {
		return 0, err
	}
	return t.Step, nil
}

func (c *Client) GetTimeUnits() (string, error) {
	t, err := c.clock()
	if err != nil {
		return "", err
	}
	return t.Units, nil
}

func (c *Client) Initialize(configPath string) error {
	return c.call(http.MethodPost, "/initialize", initializeRequest{Config: configPath}, nil)
}

func (c *Client) UpdateUntil(t float64) error {
	return c.call(http.MethodPost, "/update_until", updateRequest{Time: t}, nil)
}

func (c *Client) Finalize() error {
	return c.call(http.MethodPost, "/finalize", nil, nil)
}
