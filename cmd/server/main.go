package main

import (
	"github.com/nguyentranbao-ct/chat-gateway/cmd"
)

func main() {
	cmd.Execute()
}
