package main

import "github.com/nikogura/resume-forge/cmd"

func main() {
	cmd.Execute()
}
