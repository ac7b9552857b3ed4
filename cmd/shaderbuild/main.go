// Command shaderbuild drives the build orchestrator (package build) as a
// standalone CLI, for outer build systems that would rather shell out than
// link the orchestrator in as a library.
package main

func main() {
	Execute()
}
