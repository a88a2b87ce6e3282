package main

import "github.com/Norgate-AV/cdbpatch/cmd"

func main() {
	cmd.Execute()
}
