package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/viper"

	apperrors "receipt-reconciliation-service/pkg/errors"
	"receipt-reconciliation-service/pkg/logger"
)

// HandleError prints a user-facing description of err and returns the
// process exit code for it.
func HandleError(err error) int {
	if err == nil {
		return 0
	}

	log := logger.Global().WithComponent("cli")
	log.WithError(err).Error("command failed")

	if appErr, ok := apperrors.As(err); ok {
		fmt.Fprint(os.Stderr, apperrors.Describe(appErr))
		if viper.GetBool("verbose") && appErr.Cause != nil {
			fmt.Fprintf(os.Stderr, "Underlying error: %v\n", appErr.Cause)
		}
		return appErr.ExitCode()
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
