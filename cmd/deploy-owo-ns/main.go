package main

import (
	deployns "github.com/vrcd-community/deploy-owo-ns/src"
)

var _version_ string

func main() {
	if _version_ != "" {
		deployns.Version = _version_
	}
	deployns.Execute()
}
