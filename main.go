// The main package for the gamedb-scraper executable.
package main

import (
	"github.com/JakeFAU/gamedb-scraper/cmd"
)

func main() {
	cmd.Execute()
}
