package main

import "StudySync/cmd"

func main() {
	cmd.Execute()
}
