package bmihttp

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/bmi/bmitest"
	"github.com/san-kum/bmiview/internal/render"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const elevation = "land_surface__elevation"

func newFake() *bmitest.Fake {
	f := bmitest.New("CHILD", elevation, "m", []float64{10, 20, 30, 40}, []int{0, 1, 2, 1, 2, 3})
	f.Grids[0].X = []float64{0, 1, 0, 1}
	f.Grids[0].Y = []float64{0, 0, 1, 1}
	return f
}

func serve(t *testing.T, model bmi.BMI, opts ...ServerOption) *Client {
	t.Helper()
	opts = append([]ServerOption{WithServerLogger(zaptest.NewLogger(t))}, opts...)
	srv := httptest.NewServer(NewServer(model, "", opts...).Handler())
	c := NewClient(srv.URL, WithClientLogger(zaptest.NewLogger(t)))
	t.Cleanup(func() {
		c.Close()
		srv.Close()
	})
	return c
}

func TestClient_Queries(t *testing.T) {
	f := newFake()
	c := serve(t, f)

	name, err := c.GetComponentName()
	require.NoError(t, err)
	assert.Equal(t, "CHILD", name)

	outputs, err := c.GetOutputVarNames()
	require.NoError(t, err)
	assert.Equal(t, []string{elevation}, outputs)

	inputs, err := c.GetInputVarNames()
	require.NoError(t, err)
	assert.Equal(t, []string{elevation}, inputs)

	grid, err := c.GetVarGrid(elevation)
	require.NoError(t, err)
	assert.Equal(t, bmi.GridID(0), grid)

	size, err := c.GetGridSize(grid)
	require.NoError(t, err)
	assert.Equal(t, 4, size)

	count, err := c.GetGridFaceCount(grid)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	faces := make([]int, 3*count)
	require.NoError(t, c.GetGridFaceNodes(grid, faces))
	assert.Equal(t, []int{0, 1, 2, 1, 2, 3}, faces)

	values := make([]float64, size)
	require.NoError(t, c.GetValue(elevation, values))
	assert.Equal(t, []float64{10, 20, 30, 40}, values)

	units, err := c.GetVarUnits(elevation)
	require.NoError(t, err)
	assert.Equal(t, "m", units)

	x := make([]float64, size)
	require.NoError(t, c.GetGridX(grid, x))
	assert.Equal(t, []float64{0, 1, 0, 1}, x)

	step, err := c.GetTimeStep()
	require.NoError(t, err)
	assert.Equal(t, 1.0, step)

	tu, err := c.GetTimeUnits()
	require.NoError(t, err)
	assert.Equal(t, "y", tu)
}

func TestClient_Lifecycle(t *testing.T) {
	f := newFake()
	c := serve(t, f)

	require.NoError(t, c.Initialize("child.in"))
	assert.True(t, f.Initialized)

	require.NoError(t, c.SetValue(elevation, []float64{1, 2, 3, 4}))
	require.NoError(t, c.UpdateUntil(5))

	now, err := c.GetCurrentTime()
	require.NoError(t, err)
	assert.Equal(t, 5.0, now)
	assert.Equal(t, []float64{6, 7, 8, 9}, f.Vars[elevation].Values)

	require.NoError(t, c.Finalize())
	assert.True(t, f.Finalized)
}

func TestClient_UnknownVariable(t *testing.T) {
	c := serve(t, newFake())

	_, err := c.GetVarGrid("sea_water__depth")
	var uv *bmi.UnknownVariableError
	require.ErrorAs(t, err, &uv)
	assert.Equal(t, "sea_water__depth", uv.Name)
	assert.ErrorIs(t, err, bmi.ErrUnknownVariable)
}

func TestClient_RemoteError(t *testing.T) {
	f := newFake()
	f.Err = errors.New("container exited")
	c := serve(t, f)

	_, err := c.GetComponentName()
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusInternalServerError, re.Status)
	assert.Equal(t, KindModel, re.Kind)
	assert.Contains(t, re.Message, "container exited")

	before := f.Count("get_component_name")
	_, _ = c.GetComponentName()
	assert.Equal(t, before+1, f.Count("get_component_name"), "remote failures must not be retried")
}

func TestClient_NoCoordinates(t *testing.T) {
	c := serve(t, noCoords{newFake()})

	err := c.GetGridX(0, make([]float64, 4))
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, http.StatusNotImplemented, re.Status)
	assert.Equal(t, KindUnsupported, re.Kind)
}

// noCoords hides the NodeCoordinates capability of the fake.
type noCoords struct{ bmi.BMI }

func TestClient_BufferTooSmall(t *testing.T) {
	c := serve(t, newFake())
	err := c.GetValue(elevation, make([]float64, 2))
	assert.ErrorIs(t, err, ErrBufferSize)
}

// shortReplies serves a grid that claims 4 nodes and 2 faces but sends back
// fewer entries than that.
func shortReplies(t *testing.T) *Client {
	t.Helper()
	mux := http.NewServeMux()
	reply := func(pattern, body string) {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body))
		})
	}
	reply("GET /vars", `{"names":["`+elevation+`"]}`)
	reply("GET /vars/"+elevation+"/grid", `{"grid":0}`)
	reply("GET /vars/"+elevation+"/units", `{"units":"m"}`)
	reply("GET /vars/"+elevation+"/value", `{"values":[10,20]}`)
	reply("GET /grids/0/size", `{"count":4}`)
	reply("GET /grids/0/face_count", `{"count":2}`)
	reply("GET /grids/0/faces", `{"nodes":[1,2,3]}`)

	srv := httptest.NewServer(mux)
	c := NewClient(srv.URL)
	t.Cleanup(func() {
		c.Close()
		srv.Close()
	})
	return c
}

func TestClient_ShortRemoteArrays(t *testing.T) {
	c := shortReplies(t)

	values := []float64{-1, -1, -1, -1}
	assert.ErrorIs(t, c.GetValue(elevation, values), ErrBufferSize)

	err := c.GetGridFaceNodes(0, make([]int, 6))
	assert.ErrorIs(t, err, bmi.ErrMalformedConnectivity)

	_, err = render.New().Render(c, elevation, []float64{0, 1, 0, 1}, []float64{0, 0, 1, 1}, render.Style{})
	assert.ErrorIs(t, err, ErrBufferSize, "a short value reply must not render")
}

func TestServer_OneHandleCallPerQuery(t *testing.T) {
	f := newFake()
	c := serve(t, f)

	size, err := c.GetGridSize(0)
	require.NoError(t, err)
	assert.Equal(t, 4, size)
	count, err := c.GetGridFaceCount(0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	rank, err := c.GetGridRank(0)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
	kind, err := c.GetGridType(0)
	require.NoError(t, err)
	assert.Equal(t, bmi.GridUnstructured, kind)

	for _, call := range []string{"get_grid_size", "get_grid_face_count", "get_grid_rank", "get_grid_type"} {
		assert.Equal(t, 1, f.Count(call), call)
	}
}

func TestServer_NegativeCounts(t *testing.T) {
	f := newFake()
	f.Grids[0].FaceCount = -1
	c := serve(t, f)

	err := c.GetGridFaceNodes(0, make([]int, 3))
	var re *RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, KindModel, re.Kind)
	assert.Contains(t, re.Message, "negative face count")
	assert.Zero(t, f.Count("get_grid_face_nodes"))

	f.Grids[0].Size = -1
	err = c.GetValue(elevation, make([]float64, 4))
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Message, "grid has -1 nodes")
	assert.Zero(t, f.Count("get_value"))

	err = c.GetGridX(0, make([]float64, 4))
	require.ErrorAs(t, err, &re)
	assert.Zero(t, f.Count("get_grid_x"))
}

func TestServer_ConfigRoot(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name    string
		path    string
		allowed bool
	}{
		{"inside root", "child.in", true},
		{"nested", "runs/a/child.in", true},
		{"parent escape", "../child.in", false},
		{"absolute", "/etc/passwd", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFake()
			c := serve(t, f, WithConfigRoot(root))

			err := c.Initialize(tt.path)
			if tt.allowed {
				require.NoError(t, err)
				abs, _ := filepath.Abs(root)
				assert.Equal(t, filepath.Join(abs, tt.path), f.ConfigPath)
				return
			}
			var re *RemoteError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, http.StatusForbidden, re.Status)
			assert.Equal(t, KindForbidden, re.Kind)
			assert.False(t, f.Initialized)
		})
	}
}

func TestRenderOverHTTP(t *testing.T) {
	f := newFake()
	c := serve(t, f)
	x, y := []float64{0, 1, 0, 1}, []float64{0, 0, 1, 1}

	remote, err := render.New().Render(c, elevation, x, y, render.Style{Width: 320, Height: 240})
	require.NoError(t, err)
	local, err := render.New().Render(newFake(), elevation, x, y, render.Style{Width: 320, Height: 240})
	require.NoError(t, err)

	assert.Equal(t, local.Label, remote.Label)
	assert.Equal(t, local.Values, remote.Values)
	assert.Equal(t, local.Mesh.Faces, remote.Mesh.Faces)
	assert.Equal(t, local.Image.Pix, remote.Image.Pix)
}

func TestFloats_NaN(t *testing.T) {
	data, err := json.Marshal(valuesBody{Values: []float64{1, math.NaN(), math.Inf(1)}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"values":[1,null,null]}`, string(data))

	var back valuesBody
	require.NoError(t, json.Unmarshal(data, &back))
	require.Len(t, back.Values, 3)
	assert.Equal(t, 1.0, back.Values[0])
	assert.True(t, math.IsNaN(back.Values[1]))
}

func TestServe_Shutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(newFake(), ln.Addr().String(), WithServerLogger(zaptest.NewLogger(t)))

	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(ctx, ln) }()

	c := NewClient(ln.Addr().String())
	name, err := c.GetComponentName()
	require.NoError(t, err)
	assert.Equal(t, "CHILD", name)
	c.Close()

	cancel()
	assert.NoError(t, <-done)
}
