package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var errNoInput = errors.New("no query given: pass FQL as arguments, with --input, or on stdin")

// readSource returns the query text: the --input file if set, else the
// arguments joined by spaces, else stdin when it is not a terminal.
func readSource(cmd *cobra.Command, args []string, inputFile string) (string, error) {
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", inputFile, err)
		}
		return nonEmpty(string(data))
	}

	if len(args) > 0 {
		return nonEmpty(strings.Join(args, " "))
	}

	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok {
		info, err := f.Stat()
		if err != nil || info.Mode()&os.ModeCharDevice != 0 {
			return "", errNoInput
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return nonEmpty(string(data))
}

func nonEmpty(source string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", errNoInput
	}
	return source, nil
}

// inputErrorCode maps a readSource failure to its error code.
func inputErrorCode(err error) string {
	switch {
	case errors.Is(err, errNoInput):
		return ErrCodeNoInput
	case errors.Is(err, os.ErrNotExist):
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}
