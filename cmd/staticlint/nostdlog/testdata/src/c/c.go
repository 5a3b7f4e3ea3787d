package c

import (
	"fmt"
	"log/slog" // want `import of "log/slog" outside package main, use internal/logger`
)

func Report(msg string) {
	slog.Info(msg)
	fmt.Println(msg)
}
