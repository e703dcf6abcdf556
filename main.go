package main

import "timetable-import/internal/cli"

func main() {
	cli.Execute()
}
