package jsconfig

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/dop251/goja"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
)

type fooNative struct{}
type barNative struct{}

func noopFunc(Scope, goja.FunctionCall) goja.Value { return goja.Undefined() }
func noopGetter(Scope, goja.Value) goja.Value      { return goja.Undefined() }

// testDefinitions declares Foo before its superclass Bar to exercise forward references.
func testDefinitions() []ClassDefinition {
	return []ClassDefinition{
		{
			Name:     "Foo",
			Extends:  "Bar",
			Native:   reflect.TypeOf((*fooNative)(nil)),
			JSObject: true,
			Members: []Member{
				Constant("FOO_ONE", 1),
				Constant("FOO_CHROME_ONLY", 2).When(features.Has(features.JSPresentationRequest)),
				Property("size", noopGetter, nil),
				Function("frob", noopFunc),
				StaticFunction("make", noopFunc),
				Symbol(SymbolIterator, "frob", noopFunc),
				SymbolConstant(SymbolToStringTag, "Foo"),
			},
		},
		{
			Name:     "Bar",
			Native:   reflect.TypeOf((*barNative)(nil)),
			JSObject: true,
			Members: []Member{
				Function("bar", noopFunc),
			},
		},
		{
			Name:     "Baz",
			Extends:  "Bar",
			JSObject: true,
			Gate:     features.Families(features.FamilyChrome, features.FamilyEdge),
		},
	}
}

func TestRegistry_LinksForwardReferences(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t), testDefinitions())

	set, err := r.Configuration(features.Chrome)
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	foo, ok := set.ByName("Foo")
	require.True(t, ok)
	bar, ok := set.ByName("Bar")
	require.True(t, ok)

	assert.Same(t, bar, set.Super(foo))
	assert.Nil(t, set.Super(bar))
	assert.Equal(t, 1, set.Depth(foo))
	assert.Equal(t, 0, set.Depth(bar))

	byNative, ok := set.ByNative(reflect.TypeOf((*fooNative)(nil)))
	require.True(t, ok)
	assert.Same(t, foo, byNative)
}

func TestRegistry_GatesMembersAndClasses(t *testing.T) {
	r := NewRegistry(nil, testDefinitions())

	chrome, err := r.Configuration(features.Chrome)
	require.NoError(t, err)
	firefox, err := r.Configuration(features.Firefox)
	require.NoError(t, err)

	want := []ClassSummary{
		{
			Name: "Foo", Extends: "Bar", JSObject: true,
			Constants:       []string{"FOO_ONE"},
			Properties:      []string{"size"},
			Functions:       []string{"frob"},
			StaticFunctions: []string{"make"},
			Symbols:         []string{"Symbol.toStringTag", "Symbol.iterator"},
		},
		{Name: "Bar", JSObject: true, Functions: []string{"bar"}},
	}
	if diff := cmp.Diff(want, firefox.Summaries()); diff != "" {
		t.Errorf("firefox summaries mismatch (-want +got):\n%s", diff)
	}

	foo, _ := chrome.ByName("Foo")
	assert.Len(t, foo.Constants, 2)
	_, ok := chrome.ByName("Baz")
	assert.True(t, ok)
	_, ok = firefox.ByName("Baz")
	assert.False(t, ok, "gated class must be omitted, not stubbed")
}

func TestRegistry_MemoizesPerVersion(t *testing.T) {
	r := NewRegistry(nil, testDefinitions())

	var wg sync.WaitGroup
	sets := make([]*ClassSet, 16)
	for i := range sets {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			set, err := r.Configuration(features.Edge)
			assert.NoError(t, err)
			sets[i] = set
		}(i)
	}
	wg.Wait()

	for _, s := range sets[1:] {
		assert.Same(t, sets[0], s)
	}
	assert.Equal(t, int64(1), r.Builds())

	_, err := r.Configuration(features.Firefox)
	require.NoError(t, err)
	assert.Equal(t, int64(2), r.Builds())
}

func TestRegistry_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		defs   []ClassDefinition
		reason string
	}{
		{
			name:   "unresolvable superclass",
			defs:   []ClassDefinition{{Name: "Orphan", Extends: "Missing"}},
			reason: "superclass is not defined",
		},
		{
			name: "cycle",
			defs: []ClassDefinition{
				{Name: "A", Extends: "C"},
				{Name: "B", Extends: "A"},
				{Name: "C", Extends: "B"},
			},
			reason: "inheritance cycle",
		},
		{
			name:   "self reference",
			defs:   []ClassDefinition{{Name: "Self", Extends: "Self"}},
			reason: "inheritance cycle",
		},
		{
			name:   "duplicate",
			defs:   []ClassDefinition{{Name: "Twice"}, {Name: "Twice"}},
			reason: "declared more than once",
		},
		{
			name: "superclass gated away",
			defs: []ClassDefinition{
				{Name: "Child", Extends: "ChromeOnly"},
				{Name: "ChromeOnly", Gate: features.Families(features.FamilyChrome)},
			},
			reason: "superclass is not defined",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(nil, tt.defs)
			_, err := r.Configuration(features.Firefox)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.reason, cfgErr.Reason)

			// Failures are not cached.
			_, err = r.Configuration(features.Firefox)
			assert.Error(t, err)
			assert.Equal(t, int64(2), r.Builds())
		})
	}
}

func TestAttrFlags(t *testing.T) {
	w, e, c := Empty.Flags()
	assert.Equal(t, []goja.Flag{goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE}, []goja.Flag{w, e, c})

	w, e, c = (ReadOnly | DontEnum | Permanent).Flags()
	assert.Equal(t, []goja.Flag{goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE}, []goja.Flag{w, e, c})

	assert.True(t, (ReadOnly | Permanent).Has(ReadOnly))
	assert.False(t, ReadOnly.Has(DontEnum))
}

// FuzzRegistry_Link builds random class graphs and checks that linking either fails with
// a ConfigurationError or yields chains that end at a root within Len() hops.
func FuzzRegistry_Link(f *testing.F) {
	f.Add([]byte{3, 0, 1, 2, 0})
	f.Add([]byte{5, 1, 2, 3, 4, 0, 9})
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		n, err := consumer.GetInt()
		if err != nil {
			return
		}
		n = n%12 + 1

		defs := make([]ClassDefinition, n)
		for i := range defs {
			defs[i].Name = fmt.Sprintf("C%d", i)
			parent, err := consumer.GetInt()
			if err != nil {
				break
			}
			// Indices past n mean "no superclass"; n itself means "unknown name".
			switch p := parent % (n + 2); {
			case p < n:
				defs[i].Extends = fmt.Sprintf("C%d", p)
			case p == n:
				defs[i].Extends = "Unknown"
			}
		}

		set, err := NewRegistry(nil, defs).Configuration(features.Chrome)
		if err != nil {
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
			return
		}
		for _, c := range set.Classes() {
			if d := set.Depth(c); d >= set.Len() {
				t.Fatalf("chain of %s is %d hops long in a set of %d", c.ClassName, d, set.Len())
			}
		}
	})
}
