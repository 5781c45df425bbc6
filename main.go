package main

import "github.com/localmail/localmail/cmd"

// values set by the build
var (
	version = "dev"
	commit  = ""
	date    = ""
	builtBy = ""
)

func main() {
	cmd.Execute(version, commit, date, builtBy)
}
