package main

import "imagekit/src/cli"

func main() {
	cli.Execute()
}
