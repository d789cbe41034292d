package main

import "staffdesk/account-service/cmd/accountctl/cmd"

func main() {
	cmd.Execute()
}
