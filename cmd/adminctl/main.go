package main

import "github.com/jrsteele09/go-admin-console/cmd/adminctl/cmd"

func main() {
	cmd.Execute()
}
