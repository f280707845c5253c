package vm

// JObject represents a JVM object instance.
type JObject struct {
	ClassName string
	Fields    map[string]Value
}

// NewObject allocates an instance of className with no fields set.
func NewObject(className string) *JObject {
	return &JObject{ClassName: className, Fields: make(map[string]Value)}
}

// JArray represents a JVM array. Primitive arrays hold Int values.
type JArray struct {
	Elements []Value
}

// StringArray builds a String[] holding args.
func StringArray(args []string) *JArray {
	arr := &JArray{Elements: make([]Value, len(args))}
	for i, a := range args {
		arr.Elements[i] = RefValue(a)
	}
	return arr
}
