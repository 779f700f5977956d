/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/ssargent/pagestore/cmd/pagestore/cmd"

func main() {
	cmd.Execute()
}
