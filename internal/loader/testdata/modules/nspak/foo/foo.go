package foo

// DoFoo mirrors the demo entry point of the nspak.foo module.
func DoFoo() string {
	return "hello regex"
}
