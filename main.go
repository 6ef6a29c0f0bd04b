// SPDX-License-Identifier: MPL-2.0

// Command postroj boots throwaway Linux machines and runs commands in them.
package main

import cmd "github.com/postroj/postroj/cmd/postroj"

func main() {
	cmd.Execute()
}
