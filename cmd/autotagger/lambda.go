package main

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/aadesh/autotagger/internal/lambdahost"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Run as a function handler fed by the event bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.flush()

		h := lambdahost.New(a.dispatcher, a.loader.Config().Region, a.log.Named("lambda"))
		// Start blocks for the life of the execution environment.
		lambda.Start(h.Handle)
		return nil
	},
}
