package render_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/bmi/bmitest"
	"github.com/san-kum/bmiview/internal/mesh"
	"github.com/san-kum/bmiview/internal/render"
)

var _ = Describe("Renderer", func() {
	const name = "land_surface__elevation"

	var (
		model *bmitest.Fake
		r     *render.Renderer
		x, y  []float64
	)

	BeforeEach(func() {
		model = bmitest.New("CHILD", name, "m", []float64{10, 20, 30, 40}, []int{0, 1, 2, 1, 2, 3})
		r = render.New()
		x = []float64{0, 1, 0, 1}
		y = []float64{0, 0, 1, 1}
	})

	Context("with a four node, two face mesh", func() {
		It("produces two triangles carrying the node values", func() {
			out, err := r.Render(model, name, x, y, render.Style{EdgeColor: "k", ColorMap: "BrBG_r"})
			Expect(err).NotTo(HaveOccurred())

			Expect(out.Mesh.Faces).To(Equal([]mesh.Face{{0, 1, 2}, {1, 2, 3}}))
			Expect(out.FaceValues()).To(Equal([][3]float64{{10, 20, 30}, {20, 30, 40}}))
			Expect(out.Values).To(Equal([]float64{10, 20, 30, 40}))
		})

		It("labels the colour scale with name and units", func() {
			out, err := r.Render(model, name, x, y, render.Style{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Label).To(Equal("land_surface__elevation (m)"))
			Expect(out.Units).To(Equal("m"))
		})

		It("uses the queried units string", func() {
			model.Vars[name].Units = "km"
			out, err := r.Render(model, name, x, y, render.Style{})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Label).To(Equal("land_surface__elevation (km)"))
		})

		It("queries the handle in a fixed order", func() {
			_, err := r.Render(model, name, x, y, render.Style{})
			Expect(err).NotTo(HaveOccurred())
			Expect(model.Calls).To(Equal([]string{
				"get_output_var_names",
				"get_var_grid",
				"get_grid_size",
				"get_grid_face_count",
				"get_value",
				"get_grid_face_nodes",
				"get_var_units",
			}))
		})

		It("honours an explicit colour range", func() {
			out, err := r.Render(model, name, x, y, render.Style{ValueMin: render.Bound(-200), ValueMax: render.Bound(200)})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Min).To(Equal(-200.0))
			Expect(out.Max).To(Equal(200.0))
		})
	})

	Context("when the model state changes between renders", func() {
		It("reads values fresh on every call", func() {
			first, err := r.Render(model, name, x, y, render.Style{})
			Expect(err).NotTo(HaveOccurred())

			Expect(model.UpdateUntil(5)).To(Succeed())

			second, err := r.Render(model, name, x, y, render.Style{})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Values).To(Equal([]float64{15, 25, 35, 45}))
			Expect(first.Values).To(Equal([]float64{10, 20, 30, 40}))
		})
	})

	Context("when inputs are wrong", func() {
		It("rejects coordinates of the wrong length", func() {
			_, err := r.Render(model, name, x[:3], y, render.Style{})
			Expect(err).To(MatchError(bmi.ErrGridMismatch))
		})

		It("rejects unknown variables before touching the grid", func() {
			_, err := r.Render(model, "topographic__slope", x, y, render.Style{})
			Expect(err).To(MatchError(bmi.ErrUnknownVariable))
			Expect(model.Count("get_var_grid")).To(BeZero())
		})
	})
})
