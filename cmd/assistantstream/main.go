// Command assistantstream serves a chat agent over HTTP and runs one-off
// prompts from the terminal.
package main

func main() {
	Execute()
}
