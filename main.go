package main

import "github.com/KaramelBytes/genusdiff/cmd"

func main() {
	cmd.Execute()
}
