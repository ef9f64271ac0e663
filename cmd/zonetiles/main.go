package main

import "github.com/MeKo-Tech/zonetiles/internal/cmd"

func main() {
	cmd.Execute()
}
