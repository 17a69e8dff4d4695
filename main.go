package main

import "github.com/DRCRecoveryData/MXF-Repair-Tool/cmd"

func main() {
	cmd.Execute()
}
