package main

import "github.com/ValentinKolb/regionKV/cmd"

func main() {
	cmd.Execute()
}
