// Package main is the entry point for the mdq CLI tool.
package main

import (
	"github.com/mdlh/mdq/internal/cmd"
)

func main() {
	cmd.Execute()
}
