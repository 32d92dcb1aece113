package pak

import (
	"errors"
	"strings"
)

// Greeting is read by attribute-access tests.
var Greeting = "hello"

// DoPak mirrors the demo entry point of the pak module.
func DoPak() string {
	return "hello fuzzywuzzy"
}

// Add exists to exercise calls with arguments.
func Add(a, b int) int {
	return a + b
}

// Shout exercises multiple stdlib imports inside a module.
func Shout(s string) string {
	return strings.ToUpper(s) + "!"
}

// Fail exercises error returns through the call path.
func Fail() (string, error) {
	return "", errors.New("pak: deliberate failure")
}
