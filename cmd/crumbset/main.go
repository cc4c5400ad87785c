// Command crumbset edits cupboard tables through change-tracked sets.
package main

import "github.com/mesh-intelligence/crumbset/internal/cli"

func main() {
	cli.Execute()
}
