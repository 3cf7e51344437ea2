// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/depload/cmd/depload"

func main() {
	cmd.Execute()
}
