package native

import (
	"fmt"
	"strconv"
)

// NativeInteger represents a java.lang.Integer.
type NativeInteger struct {
	Value int32
}

const (
	cacheLow  = -128
	cacheHigh = 127
)

// integerCache mirrors Integer.valueOf's cache so small boxed values compare
// equal by reference.
var integerCache = func() [cacheHigh - cacheLow + 1]*NativeInteger {
	var c [cacheHigh - cacheLow + 1]*NativeInteger
	for i := range c {
		c[i] = &NativeInteger{Value: int32(i + cacheLow)}
	}
	return c
}()

// IntegerValueOf creates a NativeInteger (boxing).
func IntegerValueOf(v int32) *NativeInteger {
	if v >= cacheLow && v <= cacheHigh {
		return integerCache[v-cacheLow]
	}
	return &NativeInteger{Value: v}
}

// IntegerIntValue returns the int32 value of a NativeInteger (unboxing).
func IntegerIntValue(ni *NativeInteger) int32 {
	return ni.Value
}

// ParseInt implements Integer.parseInt(String).
func ParseInt(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("For input string: %q", s)
	}
	return int32(v), nil
}

func (ni *NativeInteger) String() string {
	return strconv.FormatInt(int64(ni.Value), 10)
}
