package a

import "log" // want `import of "log" outside package main, use internal/logger`

func Report(msg string) {
	log.Println(msg)
}
