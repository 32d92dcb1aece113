package pak

// Greeting is read by attribute-access tests.
var Greeting = "hello"

// DoPak mirrors the demo entry point of the pak module.
func DoPak() string {
	return "hello fuzzywuzzy"
}
