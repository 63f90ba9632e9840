// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/yokehq/yoke/cmd/yoke"

func main() {
	cmd.Execute()
}
