package main

import "github.com/docuflow/document-workflow/cmd"

func main() {
	cmd.Execute()
}
