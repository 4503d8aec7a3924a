// The main package for the news-crawler executable.
package main

import (
	"github.com/JakeFAU/news-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
