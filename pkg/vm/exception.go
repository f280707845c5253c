package vm

import (
	"fmt"
	"strings"
)

// JavaException represents a JVM exception being thrown.
type JavaException struct {
	Object  *JObject
	Message string
}

func (e *JavaException) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("JavaException: %s: %s", e.Object.ClassName, e.Message)
	}
	return fmt.Sprintf("JavaException: %s", e.Object.ClassName)
}

// NewJavaException creates an exception of className carrying message.
func NewJavaException(className, message string) *JavaException {
	obj := NewObject(className)
	if message != "" {
		obj.Fields[messageField] = RefValue(message)
	}
	return &JavaException{Object: obj, Message: message}
}

const messageField = "detailMessage"

// builtinSupers is the superclass of each JDK class the VM knows without
// loading it.
var builtinSupers = map[string]string{
	"java/lang/Throwable":                      "java/lang/Object",
	"java/lang/Exception":                      "java/lang/Throwable",
	"java/lang/Error":                          "java/lang/Throwable",
	"java/lang/RuntimeException":               "java/lang/Exception",
	"java/lang/ArithmeticException":            "java/lang/RuntimeException",
	"java/lang/NullPointerException":           "java/lang/RuntimeException",
	"java/lang/ClassCastException":             "java/lang/RuntimeException",
	"java/lang/IllegalStateException":          "java/lang/RuntimeException",
	"java/lang/IllegalArgumentException":       "java/lang/RuntimeException",
	"java/lang/NumberFormatException":          "java/lang/IllegalArgumentException",
	"java/lang/NegativeArraySizeException":     "java/lang/RuntimeException",
	"java/lang/IndexOutOfBoundsException":      "java/lang/RuntimeException",
	"java/lang/ArrayIndexOutOfBoundsException": "java/lang/IndexOutOfBoundsException",
	"java/lang/VirtualMachineError":            "java/lang/Error",
	"java/lang/StackOverflowError":             "java/lang/VirtualMachineError",
	"java/lang/Integer":                        "java/lang/Number",
	"java/lang/Number":                         "java/lang/Object",
	"java/lang/String":                         "java/lang/Object",
	"java/io/PrintStream":                      "java/lang/Object",
	"java/lang/Object":                         "",
}

// isBuiltin reports whether name is a JDK class served by the VM itself.
func isBuiltin(name string) bool {
	return strings.HasPrefix(name, "java/")
}

// builtinSuper returns the superclass of a builtin class. Unknown JDK
// classes are treated as direct subclasses of Object.
func builtinSuper(name string) string {
	if s, ok := builtinSupers[name]; ok {
		return s
	}
	return "java/lang/Object"
}
