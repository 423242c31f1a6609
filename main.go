package main

import "smsbridge/cmd"

func main() {
	cmd.Execute()
}
