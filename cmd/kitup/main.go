package main

import (
	"fmt"
	"os"

	kerrors "github.com/kitup-dev/kitup/pkg/errors"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if kerrors.IsErrorCode(err, kerrors.ErrUserAborted) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
