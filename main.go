package main

import "github.com/hudumalabs/storefront-pay/cmd"

func main() {
	cmd.Execute()
}
