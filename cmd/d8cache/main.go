// Command d8cache emits cache headers and invalidates tagged content
// through the configured backends.
package main

func main() {
	Execute()
}
