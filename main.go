package main

import "github.com/neo/quizrush_backend/cmd"

func main() {
	cmd.Execute()
}
