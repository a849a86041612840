package schema

import (
	"strings"
	"sync"
	"testing"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatDefault(f float32) *ir.AttrValue {
	return &ir.AttrValue{Type: ir.AttrFloat, F: f}
}

func TestRegistryLookupVersions(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(
		&OpSchema{Name: "Elu", SinceVersion: 6, Attributes: map[string]AttrSpec{
			"alpha": {Name: "alpha", Type: ir.AttrFloat, Default: floatDefault(1)},
		}},
		&OpSchema{Name: "Elu", SinceVersion: 1},
		&OpSchema{Name: "Elu", SinceVersion: 22},
	)

	tests := []struct {
		version int64
		want    int64
		found   bool
	}{
		{0, 0, false},
		{1, 1, true},
		{5, 1, true},
		{6, 6, true},
		{14, 6, true},
		{22, 22, true},
		{30, 22, true},
	}
	for _, tt := range tests {
		s, ok := r.Lookup("Elu", "", tt.version)
		require.Equal(t, tt.found, ok, "version %d", tt.version)
		if ok {
			assert.Equal(t, tt.want, s.SinceVersion, "version %d", tt.version)
		}
	}

	_, ok := r.Lookup("Elu", "com.microsoft", 14)
	assert.False(t, ok)
	assert.Equal(t, 3, r.Len())
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&OpSchema{Name: "Relu", SinceVersion: 14}))
	err := r.Register(&OpSchema{Name: "Sigmoid", SinceVersion: 13}, &OpSchema{Name: "Relu", SinceVersion: 14})
	require.Error(t, err)
	require.Contains(t, err.Error(), "Relu")
	// The whole batch is rejected.
	_, ok := r.Lookup("Sigmoid", "", 13)
	assert.False(t, ok)
}

func TestDefaultsAreCopies(t *testing.T) {
	s := &OpSchema{Name: "Op", Attributes: map[string]AttrSpec{
		"axes": {Name: "axes", Type: ir.AttrInts, Default: &ir.AttrValue{Type: ir.AttrInts, Ints: []int64{0, 1}}},
		"mode": {Name: "mode", Type: ir.AttrString, Required: true},
	}}
	defaults := s.Defaults()
	require.Len(t, defaults, 1)
	defaults["axes"].Ints[0] = 9
	assert.Equal(t, int64(0), s.Attributes["axes"].Default.Ints[0])
}

func TestBuildFunction(t *testing.T) {
	s := &OpSchema{
		Name:         "MeanVarianceNormalization",
		SinceVersion: 13,
		Inputs:       []string{"X"},
		Outputs:      []string{"Y"},
		Attributes: map[string]AttrSpec{
			"axes":    {Name: "axes", Type: ir.AttrInts, Default: &ir.AttrValue{Type: ir.AttrInts, Ints: []int64{0, 2, 3}}},
			"epsilon": {Name: "epsilon", Type: ir.AttrFloat},
		},
	}
	fn := &ir.Function{}
	s.BuildFunction(fn)
	assert.Equal(t, "MeanVarianceNormalization", fn.Name)
	assert.Equal(t, []string{"X"}, fn.Inputs)
	assert.Equal(t, []string{"Y"}, fn.Outputs)
	assert.Equal(t, []string{"epsilon"}, fn.Attributes)
	require.Len(t, fn.AttributeDefaults, 1)
	assert.Equal(t, "axes", fn.AttributeDefaults[0].Name)
	assert.Equal(t, []int64{0, 2, 3}, fn.AttributeDefaults[0].Value.Ints)
}

func TestLoadYAML(t *testing.T) {
	const doc = `
schemas:
  - name: LeakyRelu
    since_version: 16
    inputs: [X]
    outputs: [Y]
    attributes:
      - name: alpha
        type: float
        default: 0.01
  - name: Fused
    domain: custom
    since_version: 1
    attributes:
      - name: perm
        type: ints
        default: [1, 0]
      - name: mode
        type: string
        required: true
`
	schemas, err := LoadYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, schemas, 2)

	r := NewRegistry()
	require.NoError(t, r.Register(schemas...))
	s, ok := r.Lookup("LeakyRelu", "", 18)
	require.True(t, ok)
	assert.InDelta(t, 0.01, s.Defaults()["alpha"].F, 1e-7)

	s, ok = r.Lookup("Fused", "custom", 1)
	require.True(t, ok)
	assert.Equal(t, []int64{1, 0}, s.Defaults()["perm"].Ints)
	assert.True(t, s.Attributes["mode"].Required)
	assert.Nil(t, s.Attributes["mode"].Default)

	t.Run("UnknownType", func(t *testing.T) {
		_, err := LoadYAML(strings.NewReader("schemas:\n  - name: X\n    attributes:\n      - name: a\n        type: complex\n"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "complex")
	})
}

func TestRegistryConcurrentLookups(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(&OpSchema{Name: "Relu", SinceVersion: 14})
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_, ok := r.Lookup("Relu", "", 18)
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
}

func TestFromFunction(t *testing.T) {
	fn := &ir.Function{
		Name:              "Gelu",
		Domain:            "custom",
		Inputs:            []string{"X"},
		Outputs:           []string{"Y"},
		Attributes:        []string{"mode"},
		AttributeDefaults: []*ir.Attribute{ir.Float("alpha", 0.5)},
	}
	s := FromFunction(fn)
	assert.Equal(t, int64(1), s.SinceVersion)
	assert.Equal(t, []string{"alpha", "mode"}, s.AttributeNames())
	assert.Nil(t, s.Attributes["mode"].Default)
	assert.Equal(t, float32(0.5), s.Defaults()["alpha"].F)

	// Building a function back from the schema gives the same declaration.
	rebuilt := &ir.Function{}
	s.BuildFunction(rebuilt)
	assert.Equal(t, fn.Inputs, rebuilt.Inputs)
	assert.Equal(t, fn.Attributes, rebuilt.Attributes)
	require.Len(t, rebuilt.AttributeDefaults, 1)
	assert.Equal(t, "alpha", rebuilt.AttributeDefaults[0].Name)
}

func TestChain(t *testing.T) {
	first := NewRegistry()
	first.MustRegister(&OpSchema{Name: "Relu", SinceVersion: 14, Doc: "first"})
	second := NewRegistry()
	second.MustRegister(
		&OpSchema{Name: "Relu", SinceVersion: 1, Doc: "second"},
		&OpSchema{Name: "Gelu", Domain: "custom", SinceVersion: 1},
	)
	c := Chain{nil, first, second}

	s, ok := c.Lookup("Relu", "", 18)
	require.True(t, ok)
	assert.Equal(t, "first", s.Doc)
	s, ok = c.Lookup("Relu", "", 6)
	require.True(t, ok)
	assert.Equal(t, "second", s.Doc)
	_, ok = c.Lookup("Gelu", "custom", 1)
	assert.True(t, ok)
	_, ok = c.Lookup("Gelu", "", 1)
	assert.False(t, ok)
}

func TestForLibrary(t *testing.T) {
	lib := ir.NewLibrary(
		&ir.Function{Name: "A", Domain: "custom"},
		&ir.Function{Name: "B", Domain: "custom"},
	)
	r, err := ForLibrary(lib)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())
	_, ok := r.Lookup("B", "custom", 3)
	assert.True(t, ok)

	r, err = ForLibrary(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}
