// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/markitdownx/mdxrun/cmd/mdxrun"

func main() {
	cmd.Execute()
}
