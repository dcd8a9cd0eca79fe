package main

import "github.com/vibast-solutions/ms-go-course-shop/cmd"

func main() {
	cmd.Execute()
}
