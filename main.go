/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/imzleep/abibuilder-sub000/cmd"

func main() {
	cmd.Execute()
}
