// Package render turns a variable exposed by a model handle into a filled,
// triangulated colour plot.
//
// A render call is a pure read of the handle. In order it:
//
//  1. checks the handle offers [bmi.GridReader] and [bmi.ValueReader]
//  2. checks the variable is an output variable
//  3. resolves its grid and reads the node count once
//  4. checks the caller's coordinates against that count
//  5. reads the face count, the values and the face-node buffer once each
//  6. reshapes connectivity into triangles and rasterizes them
//
// Errors returned by the handle itself are passed through untouched. Retry
// and reconnect policy belong to whoever owns the handle.
//
// # Example
//
//	r := render.New(render.WithLogger(logger))
//	img, err := r.Render(model, "land_surface__elevation", x, y, render.Style{
//	    EdgeColor: "k",
//	    ValueMin:  render.Bound(-200),
//	    ValueMax:  render.Bound(200),
//	    ColorMap:  "BrBG_r",
//	})
//
// The returned [RenderedImage] lives in memory; persisting it is up to the
// caller (see package export).
package render
