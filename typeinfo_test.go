package arena

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestRouteOfScalars(t *testing.T) {
	assert.Equal(t, RouteBytes, RouteOf[bool]())
	assert.Equal(t, RouteBytes, RouteOf[int]())
	assert.Equal(t, RouteBytes, RouteOf[uint8]())
	assert.Equal(t, RouteBytes, RouteOf[uintptr]())
	assert.Equal(t, RouteBytes, RouteOf[float64]())
	assert.Equal(t, RouteBytes, RouteOf[complex128]())
}

func TestRouteOfComposites(t *testing.T) {
	type pod struct {
		A int64
		B [4]float32
		C struct{ D, E uint16 }
	}
	assert.Equal(t, RouteBytes, RouteOf[pod]())
	assert.Equal(t, RouteBytes, RouteOf[[3][3]float64]())
	assert.Equal(t, RouteBytes, RouteOf[[16]byte]())
	assert.Equal(t, RouteBytes, RouteOf[struct{}]())
}

func TestRouteOfPointerBearing(t *testing.T) {
	assert.Equal(t, RouteTyped, RouteOf[string]())
	assert.Equal(t, RouteTyped, RouteOf[*int]())
	assert.Equal(t, RouteTyped, RouteOf[[]bool]())
	assert.Equal(t, RouteTyped, RouteOf[map[int]int]())
	assert.Equal(t, RouteTyped, RouteOf[chan int]())
	assert.Equal(t, RouteTyped, RouteOf[func()]())
	assert.Equal(t, RouteTyped, RouteOf[any]())
	assert.Equal(t, RouteTyped, RouteOf[unsafe.Pointer]())
	assert.Equal(t, RouteTyped, RouteOf[[3]chan int]())

	// A pointer anywhere in the layout decides the whole type.
	type nested struct {
		A int
		B struct{ S string }
	}
	assert.Equal(t, RouteTyped, RouteOf[nested]())
}

func TestRouteOfFinalizer(t *testing.T) {
	// closable is pointer-free; its Finalize method alone forces the typed
	// route.
	assert.Equal(t, RouteTyped, RouteOf[closable]())
	assert.Equal(t, RouteTyped, RouteOf[resource]())
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "bytes", RouteBytes.String())
	assert.Equal(t, "typed", RouteTyped.String())
	assert.Equal(t, "Route(9)", Route(9).String())
}

func TestRouteOfStable(t *testing.T) {
	// The answer is a property of the type; repeated queries must agree so
	// generated aggregate layouts stay valid.
	type wide struct{ A, B, C [64]uint64 }
	first := RouteOf[wide]()
	assert.Equal(t, RouteBytes, first)
	for range 100 {
		assert.Equal(t, first, RouteOf[wide]())
	}
}
