package bar

// DoBar mirrors the demo entry point of the pak.bar module.
func DoBar() string {
	return "hello msgpack"
}
