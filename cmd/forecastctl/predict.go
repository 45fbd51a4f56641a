package main

import (
	"github.com/spf13/cobra"
)

func newPredictCmd(opts *rootOptions) *cobra.Command {
	var timeframe string
	cmd := &cobra.Command{
		Use:   "predict SYMBOL",
		Short: "Train the ensemble for a timeframe and print the prediction report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := timeframeArg(timeframe)
			if err != nil {
				return err
			}
			uc, err := opts.engine()
			if err != nil {
				return err
			}
			rep, err := uc.Predict(cmd.Context(), args[0], tf)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1M", "1M, 6M, 1Y or 5Y")
	return cmd
}

func newCompareCmd(opts *rootOptions) *cobra.Command {
	var timeframe string
	cmd := &cobra.Command{
		Use:   "compare SYMBOL",
		Short: "Evaluate every model family on the timeframe's holdout split",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := timeframeArg(timeframe)
			if err != nil {
				return err
			}
			uc, err := opts.engine()
			if err != nil {
				return err
			}
			cmp, err := uc.Compare(cmd.Context(), args[0], tf)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), cmp)
		},
	}
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1M", "1M, 6M, 1Y or 5Y")
	return cmd
}

func newAnalyzeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze SYMBOL",
		Short: "Predict every timeframe and print the combined analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uc, err := opts.engine()
			if err != nil {
				return err
			}
			a, err := uc.Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		},
	}
}

func newImportanceCmd(opts *rootOptions) *cobra.Command {
	var (
		timeframe string
		top       int
	)
	cmd := &cobra.Command{
		Use:   "importance SYMBOL",
		Short: "Print the top feature importances of the trained ensemble",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tf, err := timeframeArg(timeframe)
			if err != nil {
				return err
			}
			uc, err := opts.engine()
			if err != nil {
				return err
			}
			// Importances come from a cached model; train it in this process first.
			if _, err := uc.Warm(cmd.Context(), args[0], tf); err != nil {
				return err
			}
			rep, err := uc.Importance(cmd.Context(), args[0], tf, top)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().StringVarP(&timeframe, "timeframe", "t", "1M", "1M, 6M, 1Y or 5Y")
	cmd.Flags().IntVar(&top, "top", 10, "number of features")
	return cmd
}

func newSymbolsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List the tickers in the static snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			h, err := opts.history(opts.logger())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), h.Symbols())
		},
	}
}
